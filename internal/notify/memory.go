package notify

import (
	"context"
	"fmt"
	"sync"
)

// MemorySender records messages in memory. Test double; FailWith injects
// delivery failures.
type MemorySender struct {
	mu       sync.Mutex
	sent     []Message
	FailWith error
}

// NewMemorySender constructs an empty MemorySender.
func NewMemorySender() *MemorySender {
	return &MemorySender{}
}

// Send records the normalized message, or fails when FailWith is set.
func (s *MemorySender) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWith != nil {
		return "", s.FailWith
	}
	s.sent = append(s.sent, msg.normalized())
	return fmt.Sprintf("mem-%d", len(s.sent)), nil
}

// Sent returns a copy of all recorded messages.
func (s *MemorySender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

var _ Sender = (*MemorySender)(nil)
