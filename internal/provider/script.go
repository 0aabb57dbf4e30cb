package provider

import (
	"context"
	"sync"
)

// Script is a canned Oracle for local runs and tests: it replays queued
// results in order and records every request it sees. It never calls out.
type Script struct {
	mu       sync.Mutex
	queue    []scriptResult
	requests []Request
}

type scriptResult struct {
	text string
	err  error
}

// NewScript creates an empty scripted oracle.
func NewScript() *Script {
	return &Script{}
}

// Push queues a successful completion.
func (s *Script) Push(text string) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptResult{text: text})
	return s
}

// Fail queues a failed completion.
func (s *Script) Fail(err error) *Script {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, scriptResult{err: err})
	return s
}

// Requests returns a copy of every request received so far.
func (s *Script) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Complete pops the next scripted result. An exhausted script fails like a
// provider outage.
func (s *Script) Complete(_ context.Context, req Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.queue) == 0 {
		return "", &Error{Provider: "script", Message: "script exhausted"}
	}
	next := s.queue[0]
	s.queue = s.queue[1:]
	if next.err != nil {
		return "", next.err
	}
	return next.text, nil
}
