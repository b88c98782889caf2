// Package events publishes exchange lifecycle events.
//
// Publication is fire-and-forget: a failing sink is logged and never fails
// the operation that emitted the event.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"verigate/internal/platform/kafka/producer"
	"verigate/internal/platform/middleware"
)

// Type names a lifecycle transition.
type Type string

const (
	ExchangeCreated   Type = "exchange_created"
	ExchangeWaiting   Type = "exchange_waiting"
	ExchangeCompleted Type = "exchange_completed"
	ExchangeInvalid   Type = "exchange_invalid"
	ExchangeExpired   Type = "exchange_expired"
)

// Event is one lifecycle transition. It never carries tokens, challenges or
// presentation contents.
type Event struct {
	Type         Type      `json:"type"`
	ExchangeID   string    `json:"exchangeId"`
	WorkflowID   string    `json:"workflowId"`
	WorkflowType string    `json:"workflowType"`
	State        string    `json:"state"`
	Reason       string    `json:"reason,omitempty"`
	RequestID    string    `json:"requestId,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// LogPublisher writes events as audit log lines.
type LogPublisher struct {
	logger *slog.Logger
}

// NewLogPublisher creates a LogPublisher.
func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, event Event) {
	if p.logger == nil {
		return
	}
	args := []any{
		"event", string(event.Type),
		"log_type", "audit",
		"exchange_id", event.ExchangeID,
		"workflow_id", event.WorkflowID,
		"workflow_type", event.WorkflowType,
		"state", event.State,
	}
	if event.Reason != "" {
		args = append(args, "reason", event.Reason)
	}
	if requestID := requestID(ctx, event); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	p.logger.InfoContext(ctx, string(event.Type), args...)
}

// Producer is the subset of the Kafka producer the publisher needs.
type Producer interface {
	ProduceAsync(msg *producer.Message) error
}

// KafkaPublisher sends events to a topic keyed by exchange id, so all
// events of one exchange land on the same partition.
type KafkaPublisher struct {
	producer Producer
	topic    string
	logger   *slog.Logger
}

// NewKafkaPublisher creates a KafkaPublisher.
func NewKafkaPublisher(p Producer, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: p, topic: topic, logger: logger}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) {
	event.RequestID = requestID(ctx, event)
	value, err := json.Marshal(event)
	if err != nil {
		p.warn(ctx, "marshal exchange event", event, err)
		return
	}
	err = p.producer.ProduceAsync(&producer.Message{
		Topic: p.topic,
		Key:   []byte(event.ExchangeID),
		Value: value,
		Headers: map[string]string{
			"event_type":  string(event.Type),
			"workflow_id": event.WorkflowID,
		},
	})
	if err != nil {
		p.warn(ctx, "publish exchange event", event, err)
	}
}

func (p *KafkaPublisher) warn(ctx context.Context, msg string, event Event, err error) {
	if p.logger == nil {
		return
	}
	p.logger.WarnContext(ctx, msg,
		"event", string(event.Type),
		"exchange_id", event.ExchangeID,
		"error", err,
	)
}

// Multi fans an event out to every publisher.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, event Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, event)
		}
	}
}

func requestID(ctx context.Context, event Event) string {
	if event.RequestID != "" {
		return event.RequestID
	}
	return middleware.GetRequestID(ctx)
}
