package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"portfolioSwap/internal/events"
	"portfolioSwap/internal/model"
)

// SinkEmitter buffers committed events as records and hands them to a
// Storage in batches.
type SinkEmitter struct {
	store     Storage
	batchSize int
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	seq     uint64
	pending []model.EventRecord
}

// NewSinkEmitter builds an emitter that flushes once batchSize records are
// buffered. A batchSize below 1 buffers until Flush is called.
func NewSinkEmitter(store Storage, batchSize int, logger *zap.Logger) *SinkEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SinkEmitter{store: store, batchSize: batchSize, logger: logger, now: time.Now}
}

// Emit implements events.Emitter. Storage failures during an automatic flush
// are logged and the batch is kept for the next Flush.
func (s *SinkEmitter) Emit(ev events.Event) {
	s.mu.Lock()
	s.seq++
	attrs := make(map[string]string, len(ev.Attributes))
	for k, v := range ev.Attributes {
		attrs[k] = v
	}
	s.pending = append(s.pending, model.EventRecord{
		ID:         uuid.NewString(),
		Sequence:   s.seq,
		Type:       ev.Type,
		Attributes: attrs,
		EmittedAt:  s.now().UTC(),
	})
	full := s.batchSize > 0 && len(s.pending) >= s.batchSize
	s.mu.Unlock()

	if full {
		if err := s.Flush(); err != nil {
			s.logger.Warn("event flush failed", zap.Error(err))
		}
	}
}

// Flush writes every buffered record.
func (s *SinkEmitter) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return nil
	}
	if err := s.store.PutEventBatch(s.pending); err != nil {
		return fmt.Errorf("store events: %w", err)
	}
	s.logger.Debug("events flushed", zap.Int("count", len(s.pending)))
	s.pending = nil
	return nil
}

// Pending returns the number of buffered records.
func (s *SinkEmitter) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Sequence returns the sequence number of the last emitted record.
func (s *SinkEmitter) Sequence() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

// Resume continues numbering after seq. It has no effect once records have
// been emitted.
func (s *SinkEmitter) Resume(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == 0 {
		s.seq = seq
	}
}
