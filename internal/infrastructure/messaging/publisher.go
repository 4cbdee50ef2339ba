package messaging

import (
	"fmt"

	"ledger-api/internal/infrastructure/messaging/kafka"
)

// EventPublisher defines the interface for publishing ledger events.
type EventPublisher interface {
	PublishUserCreated(event UserCreatedEvent) error
	PublishAccountCreated(event AccountCreatedEvent) error
	PublishTransactionCompleted(event TransactionCompletedEvent) error
	PublishTransactionFailed(event TransactionFailedEvent) error
	Close() error
	IsHealthy() bool
}

// KafkaEventPublisher implements EventPublisher using Kafka.
type KafkaEventPublisher struct {
	producer *kafka.Producer
}

func NewKafkaEventPublisher(config *kafka.Config) (*KafkaEventPublisher, error) {
	producer, err := kafka.NewProducer(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return &KafkaEventPublisher{producer: producer}, nil
}

func (p *KafkaEventPublisher) PublishUserCreated(event UserCreatedEvent) error {
	return p.producer.PublishEvent(kafka.TopicUserCreated, event.UserID, event)
}

func (p *KafkaEventPublisher) PublishAccountCreated(event AccountCreatedEvent) error {
	return p.producer.PublishEvent(kafka.TopicAccountCreated, event.AccountID, event)
}

func (p *KafkaEventPublisher) PublishTransactionCompleted(event TransactionCompletedEvent) error {
	return p.producer.PublishEvent(kafka.TopicTransactionPosted, event.TransactionID, event)
}

func (p *KafkaEventPublisher) PublishTransactionFailed(event TransactionFailedEvent) error {
	key := event.UserID
	if key == "" {
		key = event.Type
	}
	return p.producer.PublishEvent(kafka.TopicTransactionFailed, key, event)
}

func (p *KafkaEventPublisher) Close() error {
	return p.producer.Close()
}

func (p *KafkaEventPublisher) IsHealthy() bool {
	return p.producer.IsHealthy()
}

// NoOpEventPublisher is a no-op implementation, used when Kafka is
// disabled or unreachable at startup.
type NoOpEventPublisher struct{}

func NewNoOpEventPublisher() *NoOpEventPublisher {
	return &NoOpEventPublisher{}
}

func (p *NoOpEventPublisher) PublishUserCreated(event UserCreatedEvent) error               { return nil }
func (p *NoOpEventPublisher) PublishAccountCreated(event AccountCreatedEvent) error          { return nil }
func (p *NoOpEventPublisher) PublishTransactionCompleted(event TransactionCompletedEvent) error {
	return nil
}
func (p *NoOpEventPublisher) PublishTransactionFailed(event TransactionFailedEvent) error { return nil }
func (p *NoOpEventPublisher) Close() error                                                { return nil }
func (p *NoOpEventPublisher) IsHealthy() bool                                              { return true }
