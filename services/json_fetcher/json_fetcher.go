// Package jsonfetcher retrieves full activity snapshots from the VATSIM
// data feed.
package jsonfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/AliSDisrupt/Pakistan-vACC/types"
)

// ErrFeedUnavailable marks any failure to obtain or decode a snapshot.
// The caller aborts the cycle and retries at the next interval; a failed
// fetch is "no information", never "nobody online".
var ErrFeedUnavailable = errors.New("data feed unavailable")

type Fetcher struct {
	url    string
	client *http.Client
}

func New(url string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves one snapshot. The context bounds the request on top of
// the client timeout.
func (f *Fetcher) Fetch(ctx context.Context) (*types.VatsimData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned %s", ErrFeedUnavailable, resp.Status)
	}

	var data types.VatsimData
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decoding snapshot: %v", ErrFeedUnavailable, err)
	}
	return &data, nil
}
