package persist

import (
	"sync"

	"ironbook/internal/mbo"
)

// MemSink is an in-memory Sink used as a test double.
type MemSink struct {
	mu      sync.Mutex
	records []mbo.Msg
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{}
}

func (s *MemSink) InsertBatch(records []mbo.Msg) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *MemSink) Count() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records), nil
}

// Records returns a copy of every record inserted so far, for test
// assertions.
func (s *MemSink) Records() []mbo.Msg {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]mbo.Msg, len(s.records))
	copy(out, s.records)
	return out
}
