package models

// LoginRequest represents the login credentials
type LoginRequest struct {
	// User's email address
	Email string `json:"email" example:"user@example.com"`
	// User's password
	Password string `json:"password" example:"password123"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	// JWT token for authentication
	Token string `json:"token,omitempty" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	// Token type, always "Bearer" when present
	TokenType string `json:"type,omitempty"`
	// Route the client should navigate to after the action
	Navigate string `json:"navigate,omitempty"`
	// Transient user-facing notifications produced by the action
	Notices []Notice `json:"notices,omitempty"`
}

// RegisterRequest represents the sign-up payload
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// ResetPasswordRequest represents the forgot-password payload
type ResetPasswordRequest struct {
	Email string `json:"email"`
}

// SendMessageRequest represents a chat message posted to an assistant
type SendMessageRequest struct {
	Message string `json:"message"`
}

// Notice is a transient user-facing notification (toast equivalent).
type Notice struct {
	Level   string `json:"level" example:"error"`
	Message string `json:"message" example:"Invalid credentials"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	// Status of the response (success/error)
	Status string `json:"status" example:"success"`
	// Response message
	Message string `json:"message" example:"Operation completed successfully"`
	// Optional data payload
	Data interface{} `json:"data,omitempty"`
}
