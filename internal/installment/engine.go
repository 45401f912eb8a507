// Package installment is the negotiation engine: request lifecycle, offers,
// buyer decisions with their cascades, and delinquency tracking. Every
// command runs as one store transaction; events are written to the outbox in
// that transaction and published once it commits.
package installment

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/01moynul/taptosell-installments/internal/events"
	"github.com/01moynul/taptosell-installments/internal/lock"
	"github.com/01moynul/taptosell-installments/internal/models"
	"github.com/01moynul/taptosell-installments/internal/policy"
	"github.com/01moynul/taptosell-installments/internal/store"
	"github.com/01moynul/taptosell-installments/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// Engine runs the installment negotiation operations.
type Engine struct {
	store     store.Store
	policy    policy.Provider
	locker    lock.Locker
	publisher events.Publisher
	metrics   *telemetry.Metrics
	validate  *validator.Validate
	clock     func() time.Time
	newID     func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLocker sets the per-request lock used by the Decision Resolver.
func WithLocker(l lock.Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithPublisher sets where committed events go.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithIDGenerator overrides id generation.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates an engine over st. Without options it uses an
// in-process lock, the slog publisher filtered by the policy's notification
// toggles, the wall clock and ULID ids.
func NewEngine(st store.Store, pol policy.Provider, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		policy:   pol,
		locker:   lock.NewKeyedMutex(),
		validate: validator.New(),
		clock:    time.Now,
		newID:    newULIDGenerator(),
	}
	e.publisher = events.Filtered{Next: events.LogPublisher{}, Policy: pol}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newULIDGenerator() func() string {
	var mu sync.Mutex
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return ulid.MustNew(ulid.Now(), entropy).String()
	}
}

// outbox collects the events of one transaction.
type outbox struct {
	e      *Engine
	now    time.Time
	events []models.Event
}

func (o *outbox) add(t models.EventType, entityID, requestID, status string, payload map[string]string) {
	o.events = append(o.events, models.Event{
		ID:         o.e.newID(),
		Type:       t,
		EntityID:   entityID,
		RequestID:  requestID,
		Status:     status,
		Payload:    payload,
		OccurredAt: o.now,
	})
}

// inTx runs fn in a store transaction, persists the collected events with it
// and publishes them after commit.
func (e *Engine) inTx(ctx context.Context, now time.Time, fn func(tx store.Tx, out *outbox) error) error {
	out := &outbox{e: e, now: now}
	err := e.store.RunInTx(ctx, func(tx store.Tx) error {
		out.events = out.events[:0]
		if err := fn(tx, out); err != nil {
			return err
		}
		for _, ev := range out.events {
			if err := tx.AppendEvent(ctx, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(out.events) > 0 && e.publisher != nil {
		e.publisher.Publish(ctx, out.events)
	}
	return nil
}

// supersedeWaiting moves every waiting offer of the request except keepID to superseded.
func supersedeWaiting(ctx context.Context, tx store.Tx, out *outbox, offers []*models.InstallmentOffer, keepID string, now time.Time) error {
	for _, o := range offers {
		if o.ID == keepID || o.Status != models.OfferWaitingForBuyer {
			continue
		}
		o.Status = models.OfferSuperseded
		o.UpdatedAt = now
		o.ResolvedAt = &now
		if err := tx.UpdateOffer(ctx, o); err != nil {
			return err
		}
		out.add(models.EventOfferResolved, o.ID, o.RequestID, string(o.Status), map[string]string{
			"decision": "superseded",
		})
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
