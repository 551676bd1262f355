// Package events publishes domain events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/andresuchdata/rxstock/backend-go/internal/config"
	"github.com/andresuchdata/rxstock/backend-go/internal/domain"
	"github.com/andresuchdata/rxstock/backend-go/internal/periodicity"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

const TypePeriodicityUpdated = "periodicity.updated"

// PeriodicityUpdated is emitted after a drug's periodicity row is rewritten.
type PeriodicityUpdated struct {
	Type             string                     `json:"type"`
	DrugCode         string                     `json:"drug_code"`
	PeakCount        int                        `json:"peak_count"`
	PeriodicityScore *float64                   `json:"periodicity_score"`
	FeatureVector    *periodicity.FeatureVector `json:"feature_vector"`
	ComputedAt       time.Time                  `json:"computed_at"`
}

func NewPeriodicityUpdated(rec domain.PeriodicityRecord) PeriodicityUpdated {
	ev := PeriodicityUpdated{
		Type:             TypePeriodicityUpdated,
		DrugCode:         rec.DrugCode,
		PeakCount:        rec.PeakCount,
		PeriodicityScore: rec.PeriodicityScore,
		ComputedAt:       rec.ComputedAt,
	}
	if rec.FeatureVector.Valid {
		fv := rec.FeatureVector.Vector
		ev.FeatureVector = &fv
	}
	return ev
}

type Publisher interface {
	PeriodicityUpdated(ctx context.Context, ev PeriodicityUpdated) error
	Close() error
}

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaPublisher struct {
	writer MessageWriter
}

// NewPublisher returns a Kafka publisher when brokers are configured and a
// no-op publisher otherwise.
func NewPublisher(cfg config.EventsConfig) Publisher {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" {
		log.Info().Msg("kafka brokers not configured, periodicity events disabled")
		return NewNoopPublisher()
	}
	log.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("periodicity events enabled")
	return NewKafkaPublisher(NewWriter(cfg.Brokers, cfg.Topic))
}

func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 250 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
}

func NewKafkaPublisher(w MessageWriter) Publisher {
	return &kafkaPublisher{writer: w}
}

func (p *kafkaPublisher) PeriodicityUpdated(ctx context.Context, ev PeriodicityUpdated) error {
	return PublishJSON(ctx, p.writer, ev.DrugCode, ev)
}

func (p *kafkaPublisher) Close() error {
	return p.writer.Close()
}

func PublishJSON(ctx context.Context, writer MessageWriter, key string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: body,
		Time:  time.Now().UTC(),
	})
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PeriodicityUpdated(context.Context, PeriodicityUpdated) error { return nil }

func (noopPublisher) Close() error { return nil }
