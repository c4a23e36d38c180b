// Package kafkasink publishes tenantguard audit events to a Kafka topic.
//
// Events are JSON encoded and keyed by tenant ID so a tenant's events stay
// ordered within one partition. Publish failures are logged and never
// reach the operation that produced the event.
package kafkasink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/IBM/sarama"

	"github.com/MrEthical07/tenantguard"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "tenantguard.audit"

// Config describes the producer connection.
type Config struct {
	Brokers  []string
	Topic    string
	ClientID string
}

// Sink is a [tenantguard.AuditSink] backed by a sarama SyncProducer.
type Sink struct {
	producer sarama.SyncProducer
	topic    string
}

var _ tenantguard.AuditSink = (*Sink)(nil)

// New dials the brokers and returns a sink that waits for all in-sync
// replicas on every event.
func New(cfg Config) (*Sink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafkasink: at least one broker is required")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Idempotent = true
	config.Net.MaxOpenRequests = 1
	if cfg.ClientID != "" {
		config.ClientID = cfg.ClientID
	}

	producer, err := sarama.NewSyncProducer(cfg.Brokers, config)
	if err != nil {
		return nil, fmt.Errorf("kafkasink: create producer: %w", err)
	}
	return NewWithProducer(producer, cfg.Topic), nil
}

// NewWithProducer wraps an existing producer. The sink takes ownership and
// closes it in Close.
func NewWithProducer(producer sarama.SyncProducer, topic string) *Sink {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}
	return &Sink{producer: producer, topic: topic}
}

// Topic returns the destination topic.
func (s *Sink) Topic() string {
	return s.topic
}

// Emit publishes event. It blocks until the broker acknowledges or fails.
func (s *Sink) Emit(_ context.Context, event tenantguard.AuditEvent) {
	if s == nil || s.producer == nil {
		return
	}
	if err := s.publish(event); err != nil {
		log.Printf("tenantguard: kafka audit publish failed for %s: %v", event.EventType, err)
	}
}

func (s *Sink) publish(event tenantguard.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: s.topic,
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(event.EventType)},
		},
	}
	if event.TenantID != "" {
		msg.Key = sarama.StringEncoder(event.TenantID)
	}

	if _, _, err := s.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// Close flushes and closes the producer.
func (s *Sink) Close() error {
	if s == nil || s.producer == nil {
		return nil
	}
	return s.producer.Close()
}
