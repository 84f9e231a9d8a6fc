package models

import "time"

// Chat message roles.
const (
	MessageRoleUser      = "user"
	MessageRoleAssistant = "assistant"
)

// ChatMessage is one entry of an assistant conversation. Error marks an
// inline delivery-failure message rendered in the assistant's place so the
// conversation view stays consistent.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Error     bool      `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AssistantRequest is the JSON body posted to an assistant webhook.
type AssistantRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// AssistantReply is the validated response of an assistant webhook.
type AssistantReply struct {
	Reply string `json:"reply"`
}
