package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/reveriechat/reverie/domain"
)

// MockLlm returns scripted responses or errors in order.
type MockLlm struct {
	mu        sync.Mutex
	Responses []string
	Errors    []error
	Calls     [][]domain.Turn
	Generic   []string
}

func (m *MockLlm) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Generic = append(m.Generic, prompt)
	return m.nextLocked()
}

func (m *MockLlm) GenerateTurn(ctx context.Context, history []domain.Turn) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := make([]domain.Turn, len(history))
	copy(snapshot, history)
	m.Calls = append(m.Calls, snapshot)
	return m.nextLocked()
}

func (m *MockLlm) nextLocked() (string, error) {
	if len(m.Errors) > 0 {
		err := m.Errors[0]
		m.Errors = m.Errors[1:]
		if err != nil {
			return "", err
		}
	}
	if len(m.Responses) == 0 {
		return "The scene continues quietly.", nil
	}
	resp := m.Responses[0]
	if len(m.Responses) > 1 {
		m.Responses = m.Responses[1:]
	}
	return resp, nil
}

// MockBroker records published chat events.
type MockBroker struct {
	mu     sync.Mutex
	Events []domain.ChatEvent
}

func (b *MockBroker) Publish(ctx context.Context, topic, routingKey string, message []byte) error {
	var event domain.ChatEvent
	if err := json.Unmarshal(message, &event); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Events = append(b.Events, event)
	return nil
}

func (b *MockBroker) Subscribe(ctx context.Context, topic, routingKey string) (<-chan domain.Message, error) {
	ch := make(chan domain.Message)
	return ch, nil
}

func (b *MockBroker) Close() error { return nil }

func (b *MockBroker) EventsOfKind(kind domain.ChatEventKind) []domain.ChatEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.ChatEvent
	for _, e := range b.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeClock hands out strictly increasing timestamps with a controllable
// offset, for day-marker tests.
type fakeClock struct {
	mu  sync.Mutex
	at  time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{at: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(time.Second)
	return c.at
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.at = c.at.Add(d)
}
