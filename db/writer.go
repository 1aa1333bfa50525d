package db

import (
	"context"
	"time"

	"github.com/AliSDisrupt/Pakistan-vACC/logging"
	"github.com/AliSDisrupt/Pakistan-vACC/models"
)

// SessionWriter is the write surface AsyncWriter forwards to. *Store
// satisfies it; tests substitute a fake.
type SessionWriter interface {
	InsertClosedSession(ctx context.Context, c models.ClosedSession) error
	UpsertOpenSession(ctx context.Context, o models.OpenSession) error
	DeleteOpenSession(ctx context.Context, id models.Identity) error
}

// AsyncWriter decouples the reconciliation loop from durable store
// latency and failures. Writes go through a bounded queue serviced by a
// single goroutine; a full queue or a failed write is logged and dropped,
// never surfaced to the caller. The synchronizer repairs any resulting
// divergence, keyed by the deterministic session id.
type AsyncWriter struct {
	store   SessionWriter
	queue   chan job
	done    chan struct{}
	timeout time.Duration
}

type job func(ctx context.Context) error

// NewAsyncWriter starts the background writer. Close releases it.
func NewAsyncWriter(store SessionWriter, queueSize int) *AsyncWriter {
	if queueSize <= 0 {
		queueSize = 256
	}
	w := &AsyncWriter{
		store:   store,
		queue:   make(chan job, queueSize),
		done:    make(chan struct{}),
		timeout: 10 * time.Second,
	}
	go w.run()
	return w
}

func (w *AsyncWriter) run() {
	defer close(w.done)
	for j := range w.queue {
		ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
		if err := j(ctx); err != nil {
			logging.Error().Err(err).Msg("durable write failed, will be repaired by sync")
		}
		cancel()
	}
}

// Close drains queued writes and stops the worker.
func (w *AsyncWriter) Close() {
	close(w.queue)
	<-w.done
}

func (w *AsyncWriter) enqueue(j job) {
	select {
	case w.queue <- j:
	default:
		logging.Warn().Msg("durable write queue full, dropping write")
	}
}

func (w *AsyncWriter) InsertClosedSession(c models.ClosedSession) {
	w.enqueue(func(ctx context.Context) error {
		return w.store.InsertClosedSession(ctx, c)
	})
}

func (w *AsyncWriter) UpsertOpenSession(o models.OpenSession) {
	w.enqueue(func(ctx context.Context) error {
		return w.store.UpsertOpenSession(ctx, o)
	})
}

func (w *AsyncWriter) DeleteOpenSession(id models.Identity) {
	w.enqueue(func(ctx context.Context) error {
		return w.store.DeleteOpenSession(ctx, id)
	})
}
