package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/entitlement"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
)

func chatKey(userID, assistantType string) string {
	return fmt.Sprintf("chat:%s:%s", userID, assistantType)
}

// handleSendMessage relays a chat message to the assistant's workflow
// webhook. Webhook failures become an inline assistant message instead of
// an error response, so the conversation records what happened.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	assistantType := c.Params("assistantType")

	if !entitlement.HasAccess(snap.Profile.Loaded(), assistantType) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Assistant not included in your plan",
		})
	}

	url, ok := s.cfg.Assistants.Webhooks[assistantType]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Unknown assistant",
		})
	}

	var req models.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Message is required",
		})
	}

	userMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.MessageRoleUser,
		Content:   req.Message,
		CreatedAt: time.Now().UTC(),
	}
	s.appendHistory(c.Context(), snap.User.ID, assistantType, userMsg)

	reply, err := s.webhook.Send(c.Context(), url, models.AssistantRequest{
		Message: req.Message,
		UserID:  snap.User.ID,
	})

	assistantMsg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.MessageRoleAssistant,
		CreatedAt: time.Now().UTC(),
	}
	if err != nil {
		s.logger.Error("Assistant webhook failed",
			"assistant", assistantType, "user_id", snap.User.ID, "error", err)
		assistantMsg.Content = "Sorry, I couldn't process your message. Please try again."
		assistantMsg.Error = true
	} else {
		assistantMsg.Content = reply.Reply
	}
	s.appendHistory(c.Context(), snap.User.ID, assistantType, assistantMsg)

	return c.JSON(fiber.Map{
		"message": assistantMsg,
	})
}

func (s *Server) handleListMessages(c *fiber.Ctx) error {
	snap := currentSnapshot(c)
	assistantType := c.Params("assistantType")

	if !entitlement.HasAccess(snap.Profile.Loaded(), assistantType) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Assistant not included in your plan",
		})
	}

	messages, err := s.readHistory(c.Context(), snap.User.ID, assistantType)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load conversation",
		})
	}

	return c.JSON(fiber.Map{
		"messages": messages,
	})
}

// appendHistory pushes a message onto the conversation list, trims it to
// the configured cap and refreshes the TTL. History is best-effort: a
// Redis problem must not break the chat itself.
func (s *Server) appendHistory(ctx context.Context, userID, assistantType string, msg models.ChatMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("Failed to marshal chat message", "error", err)
		return
	}

	key := chatKey(userID, assistantType)
	pipe := s.db.Redis.Pipeline()
	pipe.RPush(ctx, key, payload)
	pipe.LTrim(ctx, key, int64(-s.cfg.Assistants.HistoryLimit), -1)
	pipe.Expire(ctx, key, s.cfg.Assistants.HistoryTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.Error("Failed to store chat message", "key", key, "error", err)
	}
}

func (s *Server) readHistory(ctx context.Context, userID, assistantType string) ([]models.ChatMessage, error) {
	key := chatKey(userID, assistantType)
	raw, err := s.db.Redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read chat history: %w", err)
	}

	messages := make([]models.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg models.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.logger.Warn("Dropping unreadable chat message", "key", key, "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
