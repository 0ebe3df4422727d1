package notification

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/noah-isme/defense-allocation-api/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type contactStub map[string]*models.StudentContact

func (c contactStub) FindContact(ctx context.Context, studentID string) (*models.StudentContact, error) {
	contact, ok := c[studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return contact, nil
}

type sentMessage struct {
	Recipient string
	Text      string
}

type messageSenderStub struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
	fail map[string]error
}

func (s *messageSenderStub) SendMessage(ctx context.Context, recipient, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[recipient]; err != nil {
		return err
	}
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMessage{Recipient: recipient, Text: text})
	return nil
}

func (s *messageSenderStub) messages() []sentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentMessage(nil), s.sent...)
}

type emailSenderStub struct {
	mu   sync.Mutex
	err  error
	sent []Message
}

func (s *emailSenderStub) SendEmail(ctx context.Context, to string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// memoryRetryStore is a FIFO RetryStore.
type memoryRetryStore struct {
	mu      sync.Mutex
	items   []RetryPayload
	pushErr error
}

func (s *memoryRetryStore) Push(ctx context.Context, payload RetryPayload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pushErr != nil {
		return s.pushErr
	}
	s.items = append(s.items, payload)
	return nil
}

func (s *memoryRetryStore) Pop(ctx context.Context) (*RetryPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.items) == 0 {
		return nil, nil
	}
	head := s.items[0]
	s.items = s.items[1:]
	return &head, nil
}

func (s *memoryRetryStore) Len(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.items)), nil
}

func (s *memoryRetryStore) snapshot() []RetryPayload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RetryPayload(nil), s.items...)
}

type outcomeStub struct {
	mu       sync.Mutex
	outcomes map[string]int
	depth    int64
}

func (o *outcomeStub) RecordNotification(channel, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.outcomes == nil {
		o.outcomes = map[string]int{}
	}
	o.outcomes[channel+":"+outcome]++
}

func (o *outcomeStub) SetRetryQueueDepth(depth int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.depth = depth
}

func strPtr(s string) *string { return &s }
