package media

import (
	"context"
	"fmt"
	"sync"
)

// StubProber answers from a fixed table. It stands in for ffprobe when the
// binary is not installed and in tests.
type StubProber struct {
	mu      sync.Mutex
	results map[string]ProbeResult
	calls   int
}

func NewStubProber(results map[string]ProbeResult) *StubProber {
	if results == nil {
		results = map[string]ProbeResult{}
	}
	return &StubProber{results: results}
}

func (s *StubProber) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	res, ok := s.results[source]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, source)
	}
	return &res, nil
}

// Calls returns how many probes were made.
func (s *StubProber) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
