// Package profiles reads and writes the profiles relation, fronted by a
// Redis read-through cache keyed by user id.
package profiles

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
)

const profileColumns = "id, full_name, avatar_url, role, plan, allowed_assistants, whatsapp_jid, google_access_token, google_refresh_token, google_token_expiry, updated_at"

// Repo is the profile store client. A missing row is (nil, nil), not an
// error: the row may legitimately not exist yet right after sign-up.
type Repo struct {
	db       *database.Clients
	cacheTTL time.Duration
	logger   *slog.Logger
}

func NewRepo(db *database.Clients, cacheTTL time.Duration, logger *slog.Logger) *Repo {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repo{db: db, cacheTTL: cacheTTL, logger: logger}
}

func cacheKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

// FetchProfile returns the single row matching the auth user id. The Redis
// cache is consulted first; cache problems only cost the round trip.
func (r *Repo) FetchProfile(ctx context.Context, userID string) (*models.Profile, error) {
	key := cacheKey(userID)
	if cached, err := r.db.Redis.Get(ctx, key).Bytes(); err == nil {
		var profile models.Profile
		if err := json.Unmarshal(cached, &profile); err == nil {
			return &profile, nil
		}
		r.logger.Error("Dropping unreadable cached profile", "user_id", userID)
		r.db.Redis.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Error("Profile cache read failed", "user_id", userID, "error", err)
	}

	var profile models.Profile
	query := fmt.Sprintf("SELECT %s FROM profiles WHERE id = $1", profileColumns)
	if err := r.db.DB.GetContext(ctx, &profile, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch profile: %w", err)
	}

	if encoded, err := json.Marshal(&profile); err == nil {
		if err := r.db.Redis.Set(ctx, key, encoded, r.cacheTTL).Err(); err != nil {
			r.logger.Error("Profile cache write failed", "user_id", userID, "error", err)
		}
	}
	return &profile, nil
}

// FetchPlans lists the user's entitlement grants.
func (r *Repo) FetchPlans(ctx context.Context, userID string) ([]models.UserPlan, error) {
	var plans []models.UserPlan
	err := r.db.DB.SelectContext(ctx, &plans,
		"SELECT user_id, plan_name, expires_at, created_at FROM user_plans WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch plans: %w", err)
	}
	return plans, nil
}

// InsertProfile creates the row written right after account creation.
func (r *Repo) InsertProfile(ctx context.Context, userID, fullName string) error {
	_, err := r.db.DB.ExecContext(ctx,
		"INSERT INTO profiles (id, full_name, updated_at) VALUES ($1, $2, NOW())",
		userID, fullName)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Update writes the admin-editable fields and drops the cached copy.
func (r *Repo) Update(ctx context.Context, profile *models.Profile) error {
	_, err := r.db.DB.ExecContext(ctx,
		`UPDATE profiles SET full_name = $1, avatar_url = $2, role = $3, plan = $4,
			allowed_assistants = $5, whatsapp_jid = $6, updated_at = NOW()
		WHERE id = $7`,
		profile.FullName, profile.AvatarURL, profile.Role, profile.Plan,
		profile.AllowedAssistants, profile.WhatsappJID, profile.ID)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if err := r.db.Redis.Del(ctx, cacheKey(profile.ID)).Err(); err != nil {
		r.logger.Error("Failed to invalidate profile cache", "user_id", profile.ID, "error", err)
	}
	return nil
}

// List returns every profile, most recently updated first.
func (r *Repo) List(ctx context.Context) ([]models.Profile, error) {
	var all []models.Profile
	query := fmt.Sprintf("SELECT %s FROM profiles ORDER BY updated_at DESC", profileColumns)
	if err := r.db.DB.SelectContext(ctx, &all, query); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return all, nil
}

// Invalidate drops the cached copy for a user; the worker calls this when
// it consumes an auth event.
func (r *Repo) Invalidate(ctx context.Context, userID string) error {
	return r.db.Redis.Del(ctx, cacheKey(userID)).Err()
}
