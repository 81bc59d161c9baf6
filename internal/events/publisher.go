// Package events publishes engine events to Kafka: stable detections that
// mutated a cart, and committed transactions. When no brokers are configured
// the publisher runs in log-only mode, so the engine never depends on a
// broker being present.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/smartstore/engine/internal/logging"
)

// Publisher writes to separate topics for detections and transactions.
type Publisher struct {
	writerDetections   *kafka.Writer
	writerTransactions *kafka.Writer
	topicDetections    string
	topicTransactions  string
	enabled            bool
	log                zerolog.Logger
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers           []string
	TopicDetections   string
	TopicTransactions string
}

// New creates the publisher. Empty brokers means log-only mode.
func New(cfg Config) *Publisher {
	log := logging.WithComponent("events")

	if len(cfg.Brokers) == 0 {
		log.Info().Msg("kafka disabled, using log-only mode")
		return &Publisher{
			topicDetections:   cfg.TopicDetections,
			topicTransactions: cfg.TopicTransactions,
			enabled:           false,
			log:               log,
		}
	}

	newWriter := func(topic string) *kafka.Writer {
		return &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
			WriteTimeout: 10 * time.Second,
			RequiredAcks: kafka.RequireOne,
		}
	}

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicDetections", cfg.TopicDetections).
		Str("topicTransactions", cfg.TopicTransactions).
		Msg("kafka publisher initialized")

	return &Publisher{
		writerDetections:   newWriter(cfg.TopicDetections),
		writerTransactions: newWriter(cfg.TopicTransactions),
		topicDetections:    cfg.TopicDetections,
		topicTransactions:  cfg.TopicTransactions,
		enabled:            true,
		log:                log,
	}
}

// PublishDetection publishes a stable-detection event keyed by identity.
func (p *Publisher) PublishDetection(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerDetections, p.topicDetections, key, event)
}

// PublishTransaction publishes a committed-transaction event keyed by session.
func (p *Publisher) PublishTransaction(ctx context.Context, key string, event any) error {
	return p.publish(ctx, p.writerTransactions, p.topicTransactions, key, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, key string, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error().Err(err).Str("topic", topic).Msg("failed to marshal event")
		return err
	}

	p.log.Debug().
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("publishing event")

	if !p.enabled || writer == nil {
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(topic)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		p.log.Error().Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("failed to write to kafka")
		return err
	}

	return nil
}

// Close closes both writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerDetections != nil {
		if e := p.writerDetections.Close(); e != nil {
			p.log.Error().Err(e).Msg("error closing detections writer")
			err = e
		}
	}
	if p.writerTransactions != nil {
		if e := p.writerTransactions.Close(); e != nil {
			p.log.Error().Err(e).Msg("error closing transactions writer")
			err = e
		}
	}
	return err
}
