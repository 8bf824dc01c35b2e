// Package stub provides a canned-response invoker for tests and offline
// pipeline runs.
package stub

import (
	"context"
	"sync"
)

// Call records one invocation made against the stub.
type Call struct {
	SystemPrompt string
	UserPrompt   string
}

// Invoker replays scripted responses in order. When the script is
// exhausted it keeps returning the last entry, so a single canned reply
// serves any number of concurrent specialists.
type Invoker struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	next      int
	calls     []Call
}

// NewInvoker creates a stub that cycles through the given responses.
func NewInvoker(responses ...string) *Invoker {
	return &Invoker{responses: responses}
}

// FailWith queues an error ahead of the scripted responses.
func (s *Invoker) FailWith(err error) *Invoker {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
	return s
}

// Invoke returns the next scripted response or queued error.
func (s *Invoker) Invoke(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, Call{SystemPrompt: systemPrompt, UserPrompt: userPrompt})

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}

	if len(s.responses) == 0 {
		return "{}", nil
	}

	resp := s.responses[s.next]
	if s.next < len(s.responses)-1 {
		s.next++
	}
	return resp, nil
}

// Calls returns a copy of every recorded invocation.
func (s *Invoker) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}
