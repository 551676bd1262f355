package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/segmentio/kafka-go"
)

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (c *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	c.msgs = append(c.msgs, msgs...)
	return nil
}

func (c *captureWriter) Close() error {
	c.closed = true
	return nil
}

func TestKafkaPublisher_PeriodicityUpdated(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaPublisher(w)

	score := 81.5
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rec := domain.NewPeriodicityRecord("A100",
		periodicity.Metrics{PeakCount: 4, PeriodicityScore: &score},
		periodicity.FeatureVector{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, at)

	if err := pub.PeriodicityUpdated(context.Background(), NewPeriodicityUpdated(rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.msgs))
	}
	if string(w.msgs[0].Key) != "A100" {
		t.Errorf("expected key A100, got %s", w.msgs[0].Key)
	}

	var got PeriodicityUpdated
	if err := json.Unmarshal(w.msgs[0].Value, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != TypePeriodicityUpdated || got.PeakCount != 4 || *got.PeriodicityScore != 81.5 {
		t.Errorf("unexpected event %+v", got)
	}
	if got.FeatureVector == nil || got.FeatureVector[5] != 0.6 {
		t.Errorf("unexpected feature vector %v", got.FeatureVector)
	}

	if err := pub.Close(); err != nil || !w.closed {
		t.Errorf("expected writer to be closed")
	}
}

func TestNewPeriodicityUpdated_NoVector(t *testing.T) {
	ev := NewPeriodicityUpdated(domain.PeriodicityRecord{DrugCode: "N1", PeakCount: 1})
	if ev.FeatureVector != nil || ev.PeriodicityScore != nil {
		t.Errorf("expected nil fields, got %+v", ev)
	}
}

func TestNewPublisher_NoBrokers(t *testing.T) {
	pub := NewPublisher(config.EventsConfig{Topic: "rx.periodicity"})
	if _, ok := pub.(noopPublisher); !ok {
		t.Fatalf("expected noop publisher, got %T", pub)
	}
	if err := pub.PeriodicityUpdated(context.Background(), PeriodicityUpdated{}); err != nil {
		t.Errorf("noop publish failed: %v", err)
	}
}
