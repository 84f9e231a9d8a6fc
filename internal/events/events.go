// Package events publishes auth activity to the durable event stream the
// audit worker consumes.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Event types recorded in the audit trail.
const (
	TypeSignedIn       = "signed_in"
	TypeSignedUp       = "signed_up"
	TypeSignedOut      = "signed_out"
	TypePasswordReset  = "password_reset_requested"
	TypeProfileUpdated = "profile_updated"
)

// AuthEvent is one entry of the auth activity stream.
type AuthEvent struct {
	ID     string    `json:"id"`
	UserID string    `json:"user_id,omitempty"`
	Email  string    `json:"email,omitempty"`
	Type   string    `json:"type"`
	At     time.Time `json:"at"`
}

// New builds an event with a fresh id and timestamp.
func New(eventType, userID, email string) AuthEvent {
	return AuthEvent{
		ID:     uuid.NewString(),
		UserID: userID,
		Email:  email,
		Type:   eventType,
		At:     time.Now().UTC(),
	}
}

// Publisher sends auth events to the stream.
type Publisher interface {
	Publish(ev AuthEvent) error
}

// KafkaPublisher implements Publisher on a synchronous Kafka producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ev AuthEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal auth event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.UserID),
		Value: sarama.StringEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish auth event: %w", err)
	}
	return nil
}
