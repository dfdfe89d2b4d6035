// Package audit is the social spy log: a copy of private messages written to
// the console, a per-run file, or the database with optional Redis fan-out.
package audit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"whisperchat/backend/internal/config"
	"whisperchat/backend/internal/models"
	"whisperchat/backend/internal/storage"

	"github.com/samber/lo"
)

const queueSize = 256

// Sink writes one audit record.
type Sink interface {
	Write(rec models.AuditRecord) error
	Close() error
}

// Recorder filters records by kind and hands them to a Sink on a background
// goroutine, so a slow sink never delays delivery. Records arriving while the
// queue is full are dropped.
type Recorder struct {
	sink   Sink
	kinds  map[string]bool
	queue  chan models.AuditRecord
	done   chan struct{}
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing the given kinds to sink.
func NewRecorder(sink Sink, kinds []string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		sink:   sink,
		kinds:  lo.SliceToMap(kinds, func(k string) (string, bool) { return k, true }),
		queue:  make(chan models.AuditRecord, queueSize),
		done:   make(chan struct{}),
		logger: logger.With("component", "audit"),
	}
	go r.loop()
	return r
}

// Record queues rec if its kind is audited. A nil Recorder records nothing.
func (r *Recorder) Record(rec models.AuditRecord) {
	if r == nil || !r.kinds[rec.Kind] {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.queue <- rec:
	default:
		r.logger.Warn("audit queue full, dropping record", "kind", rec.Kind, "sender", rec.SenderID)
	}
}

// Close flushes queued records and closes the sink.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.sink.Close()
}

func (r *Recorder) loop() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.sink.Write(rec); err != nil {
			r.logger.Warn("failed to write audit record", "kind", rec.Kind, "sender", rec.SenderID, "err", err)
		}
	}
}

// New builds the recorder for the configured mode. It returns nil for mode
// "none". store is only used by the database and redis modes.
func New(cfg config.AuditConfig, store storage.Storage, logger *slog.Logger) (*Recorder, error) {
	var sink Sink
	switch cfg.Mode {
	case config.AuditNone, "":
		return nil, nil
	case config.AuditConsole:
		sink = NewConsoleLogger(nil)
	case config.AuditFile:
		disk, err := NewDiskLogger(cfg.Dir, time.Now())
		if err != nil {
			return nil, err
		}
		sink = disk
	case config.AuditDatabase, config.AuditRedis:
		if store == nil {
			return nil, errors.New("audit: storage is required for mode " + cfg.Mode)
		}
		sink = NewStoreLogger(store, cfg.Mode == config.AuditRedis)
	default:
		return nil, fmt.Errorf("audit: unknown mode %q", cfg.Mode)
	}
	return NewRecorder(sink, cfg.Kinds, logger), nil
}
