// Package events dispatches committed outbox events to the notification side.
package events

import (
	"context"
	"sync"

	"github.com/01moynul/taptosell-installments/internal/logger"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/policy"
)

// Publisher receives events after the transaction that produced them commits.
type Publisher interface {
	Publish(ctx context.Context, evts []models.Event)
}

// LogPublisher writes every event to the structured log.
type LogPublisher struct{}

// Publish implements Publisher.
func (LogPublisher) Publish(ctx context.Context, evts []models.Event) {
	for _, e := range evts {
		args := []any{
			"event_id", e.ID,
			"type", string(e.Type),
			"entity_id", e.EntityID,
			"installment_request_id", e.RequestID,
			"status", e.Status,
		}
		for k, v := range e.Payload {
			args = append(args, k, v)
		}
		logger.Info(ctx, "installment event", args...)
	}
}

// Filtered drops events whose notification toggle is off in the current policy.
type Filtered struct {
	Next   Publisher
	Policy policy.Provider
}

// Publish implements Publisher.
func (f Filtered) Publish(ctx context.Context, evts []models.Event) {
	pol := f.Policy.Current()
	kept := make([]models.Event, 0, len(evts))
	for _, e := range evts {
		if pol.NotificationEnabled(e.Type) {
			kept = append(kept, e)
		}
	}
	if len(kept) > 0 {
		f.Next.Publish(ctx, kept)
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []models.Event
}

// Publish implements Publisher.
func (r *Recorder) Publish(_ context.Context, evts []models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evts...)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []models.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// Reset clears the recorder.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
