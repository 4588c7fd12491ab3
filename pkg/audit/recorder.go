package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Recorder accepts records from the request path and persists them
// asynchronously. Enqueueing never blocks: when the queue is full the record
// is dropped and counted, because stalling completions to preserve audit
// rows would invert the gateway's priorities.
type Recorder struct {
	store  Store
	queue  chan *Record
	logger *slog.Logger

	dropped  atomic.Int64
	onDrop   func()
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// RecorderOption customizes a Recorder.
type RecorderOption func(*Recorder)

// WithDropHook registers a callback invoked once per dropped record.
func WithDropHook(hook func()) RecorderOption {
	return func(r *Recorder) { r.onDrop = hook }
}

// NewRecorder creates a Recorder draining into the given store and starts
// its worker.
func NewRecorder(store Store, queueSize int, opts ...RecorderOption) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}

	r := &Recorder{
		store:  store,
		queue:  make(chan *Record, queueSize),
		logger: slog.Default().With("component", "audit.recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Record enqueues a record for persistence. Missing ID and CreatedAt fields
// are filled in. Returns false if the record was dropped.
func (r *Recorder) Record(rec *Record) bool {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	select {
	case r.queue <- rec:
		return true
	default:
		r.dropped.Add(1)
		if r.onDrop != nil {
			r.onDrop()
		}
		return false
	}
}

// Dropped returns the number of records lost to queue pressure.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records, drains the queue, and closes the store.
func (r *Recorder) Close() error {
	r.stopOnce.Do(func() {
		close(r.queue)
		r.wg.Wait()
	})
	return r.store.Close()
}

// run is the worker goroutine persisting queued records.
func (r *Recorder) run() {
	defer r.wg.Done()

	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.Save(ctx, rec); err != nil {
			r.logger.Warn("failed to persist audit record",
				"record_id", rec.ID,
				"method", rec.Method,
				"error", err,
			)
		}
		cancel()
	}
}
