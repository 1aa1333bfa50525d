// Package roster notifies the vACC roster service when a member is
// observed online, so profile metadata stays fresh. Strictly best
// effort: nothing here can fail a reconciliation cycle.
package roster

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/AliSDisrupt/Pakistan-vACC/logging"
)

type Client struct {
	baseURL string
	client  *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type observedPayload struct {
	CID      int    `json:"cid"`
	Name     string `json:"name"`
	Callsign string `json:"callsign"`
}

// NotifyObserved posts the sighting in the background. Failures are
// logged at debug level; the roster service being down is routine.
func (c *Client) NotifyObserved(cid int, name, callsign string) {
	if cid == 0 {
		return
	}
	go func() {
		body, err := json.Marshal(observedPayload{CID: cid, Name: name, Callsign: callsign})
		if err != nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/members/observed", bytes.NewReader(body))
		if err != nil {
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			logging.Debug().Err(err).Int("cid", cid).Msg("roster notify failed")
			return
		}
		resp.Body.Close()
	}()
}
