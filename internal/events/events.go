package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"promoledger/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	AttributionClicked   = "attribution.clicked"
	AttributionConverted = "attribution.converted"
	AttributionPaid      = "attribution.paid"
	SponsorshipCreated   = "sponsorship.created"
	SponsorshipApproved  = "sponsorship.approved"
	SponsorshipRejected  = "sponsorship.rejected"
	SponsorshipPaused    = "sponsorship.paused"
	SponsorshipResumed   = "sponsorship.resumed"
	RankingRecomputed    = "ranking.recomputed"
)

// Event is the envelope written to Kafka and relayed to dashboards.
// Key is the aggregate id and doubles as the partition key.
type Event struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

func New(eventType, key string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		OccurredAt: at.UTC(),
		Payload:    raw,
	}, nil
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi fans an event out to every publisher and joins their errors.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory records published events; used in tests and when no broker is configured.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func NewMemory() *Memory { return &Memory{events: []Event{}} }

func (m *Memory) Publish(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Types lists recorded event types in publication order.
func (m *Memory) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

// Bus is what services emit through. Publication is best-effort: the ledger
// write has already committed, so failures are logged and counted only.
// A nil *Bus drops everything.
type Bus struct {
	pub     Publisher
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewBus(pub Publisher, log *zap.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{pub: pub, log: log, metrics: m}
}

func (b *Bus) Emit(ctx context.Context, eventType, key string, payload any) {
	if b == nil || b.pub == nil {
		return
	}
	e, err := New(eventType, key, payload, time.Now())
	if err != nil {
		b.log.Error("encode event", zap.String("type", eventType), zap.Error(err))
		b.metrics.Event(eventType, "error")
		return
	}
	if err := b.pub.Publish(ctx, e); err != nil {
		b.log.Warn("publish event", zap.String("type", eventType), zap.String("key", key), zap.Error(err))
		b.metrics.Event(eventType, "error")
		return
	}
	b.metrics.Event(eventType, "ok")
}
