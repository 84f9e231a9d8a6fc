package models

import (
	"time"

	"github.com/lib/pq"
)

// Role values stored in profiles.role.
const (
	RoleAdmin     = "admin"
	RoleBasicUser = "basic_user"
)

// PlanFree is the baseline plan every entitled user keeps. Granting any
// assistant plan also ensures a "free" entry exists for the user.
const PlanFree = "free"

// Profile represents a row of the profiles relation, one-to-one with an
// auth user. The row may legitimately not exist yet right after sign-up:
// account creation and profile insertion are separate writes.
type Profile struct {
	ID                 string         `json:"id" db:"id"` // UUID matching auth.users.id
	FullName           string         `json:"full_name" db:"full_name"`
	AvatarURL          string         `json:"avatar_url" db:"avatar_url"`
	Role               string         `json:"role" db:"role"`
	Plan               string         `json:"plan" db:"plan"`
	AllowedAssistants  pq.StringArray `json:"allowed_assistants" db:"allowed_assistants"`
	WhatsappJID        string         `json:"whatsapp_jid" db:"whatsapp_jid"`
	GoogleAccessToken  string         `json:"google_access_token,omitempty" db:"google_access_token"`
	GoogleRefreshToken string         `json:"google_refresh_token,omitempty" db:"google_refresh_token"`
	GoogleTokenExpiry  *time.Time     `json:"google_token_expiry,omitempty" db:"google_token_expiry"`
	UpdatedAt          time.Time      `json:"updated_at" db:"updated_at"`
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p != nil && p.Role == RoleAdmin
}

// UserPlan is a single entitlement grant from the user_plans relation.
// A nil ExpiresAt means the grant does not expire.
type UserPlan struct {
	UserID    string     `json:"user_id" db:"user_id"`
	PlanName  string     `json:"plan_name" db:"plan_name"`
	ExpiresAt *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Active reports whether the grant is currently usable.
func (up UserPlan) Active(now time.Time) bool {
	return up.ExpiresAt == nil || up.ExpiresAt.After(now)
}
