package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// Reply is one scripted provider outcome.
type Reply struct {
	Content json.RawMessage
	Err     error
}

// Scripted is an offline Provider that plays back replies in order and
// keeps the requests it saw. Content is still checked against the schema.
type Scripted struct {
	mu       sync.Mutex
	replies  []Reply
	requests []Request
}

func NewScripted(replies ...Reply) *Scripted {
	return &Scripted{replies: replies}
}

func (s *Scripted) Generate(_ context.Context, req Request) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if len(s.replies) == 0 {
		return nil, unavailable(nil)
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	if reply.Err != nil {
		return nil, reply.Err
	}
	if err := validateResponse(req.Schema, reply.Content); err != nil {
		return nil, err
	}
	return &Response{Content: reply.Content, Model: s.ModelID()}, nil
}

func (s *Scripted) ModelID() string { return "scripted" }

// Requests returns a copy of every request received so far.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}
