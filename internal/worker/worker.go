// Package worker consumes the auth-event stream, records the audit trail
// and keeps the profile cache coherent across api instances.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/config"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/events"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
)

type Worker struct {
	cfg      *config.Config
	db       *database.Clients
	consumer sarama.ConsumerGroup
	ready    chan bool
}

func NewWorker(cfg *config.Config, db *database.Clients, consumer sarama.ConsumerGroup) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start error logging for consumer errors
	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	// Start consuming messages
	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				slog.Info("Context cancelled; exiting consumer loop")
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready // Wait till the consumer has been set up
	slog.Info("Worker setup complete; consumer ready")

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	slog.Info("Consumer group session setup complete")
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.processEvent(message); err != nil {
			slog.Error("Failed to process auth event", "offset", message.Offset, "error", err)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// processEvent records the event in the audit trail and drops the affected
// user's cached profile so the next read sees fresh entitlements.
func (w *Worker) processEvent(msg *sarama.ConsumerMessage) error {
	var ev events.AuthEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("failed to parse auth event: %w", err)
	}
	slog.Info("Auth event received", "type", ev.Type, "user_id", ev.UserID)

	// Insert with retries; the audit trail should survive transient
	// database hiccups.
	var err error
	for attempt := 1; attempt <= w.cfg.Kafka.RetryMax; attempt++ {
		err = w.recordEvent(ev)
		if err == nil {
			break
		}
		slog.Error("Audit insert failed", "event_id", ev.ID, "attempt", attempt, "error", err)
		time.Sleep(w.cfg.Kafka.RetryBackoff)
	}
	if err != nil {
		return err
	}

	if ev.UserID != "" {
		ctx := context.Background()
		key := fmt.Sprintf("profile:%s", ev.UserID)
		if err := w.db.Redis.Del(ctx, key).Err(); err != nil {
			slog.Error("Failed to invalidate cached profile", "user_id", ev.UserID, "error", err)
		}
	}
	return nil
}

func (w *Worker) recordEvent(ev events.AuthEvent) error {
	var userID interface{}
	if ev.UserID != "" {
		userID = ev.UserID
	}
	_, err := w.db.DB.Exec(
		"INSERT INTO auth_events (id, user_id, event_type, email, created_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING",
		ev.ID, userID, ev.Type, ev.Email, ev.At,
	)
	if err != nil {
		return fmt.Errorf("failed to record auth event: %w", err)
	}
	return nil
}
