// Package memory contains an in-memory outcome publisher for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/apify-webhook-monitor/internal/monitor"
	"github.com/JakeFAU/apify-webhook-monitor/internal/publisher"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []publisher.OutcomeEvent
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// ObserveOutcome records the event.
func (p *Publisher) ObserveOutcome(ctx context.Context, out monitor.Outcome) error {
	_, err := p.Publish(ctx, publisher.NewOutcomeEvent(out))
	return err
}

// Publish records the event and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, ev publisher.OutcomeEvent) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns the recorded events.
func (p *Publisher) Events() []publisher.OutcomeEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]publisher.OutcomeEvent, len(p.events))
	copy(out, p.events)
	return out
}

var _ monitor.Observer = (*Publisher)(nil)
