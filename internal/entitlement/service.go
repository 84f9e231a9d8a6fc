package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/models"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
)

// ErrFreePlanRequired is returned when a revoke would strip the baseline
// "free" entry while other grants still exist for the user.
var ErrFreePlanRequired = errors.New("the free plan must remain while other plans exist")

// Service mutates entitlements. Every mutation keeps two invariants: once
// any grant exists for a user a "free" entry exists too, and the profile's
// allowed_assistants column mirrors the active grant list.
type Service struct {
	db     *database.Clients
	logger *slog.Logger
}

func NewService(db *database.Clients, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{db: db, logger: logger}
}

// Grant adds (or refreshes) a plan for the user and ensures the baseline
// "free" entry exists alongside it.
func (s *Service) Grant(ctx context.Context, userID, planName string, expiresAt *time.Time) error {
	if planName == "" {
		return fmt.Errorf("plan name is required")
	}

	tx, err := s.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin grant transaction: %w", err)
	}
	defer tx.Rollback()

	const upsert = `INSERT INTO user_plans (user_id, plan_name, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, plan_name) DO UPDATE SET expires_at = EXCLUDED.expires_at`

	if _, err := tx.ExecContext(ctx, upsert, userID, planName, expiresAt); err != nil {
		return fmt.Errorf("failed to grant plan %q: %w", planName, err)
	}
	if planName != models.PlanFree {
		if _, err := tx.ExecContext(ctx, upsert, userID, models.PlanFree, nil); err != nil {
			return fmt.Errorf("failed to ensure free plan: %w", err)
		}
	}

	if err := s.syncAllowedAssistants(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}

	s.invalidateProfileCache(ctx, userID)
	s.logger.Info("Plan granted", "user_id", userID, "plan", planName)
	return nil
}

// Revoke removes a plan. The baseline "free" entry can only be removed
// once it is the user's last remaining grant.
func (s *Service) Revoke(ctx context.Context, userID, planName string) error {
	tx, err := s.db.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin revoke transaction: %w", err)
	}
	defer tx.Rollback()

	if planName == models.PlanFree {
		var others int
		err := tx.GetContext(ctx, &others,
			"SELECT COUNT(*) FROM user_plans WHERE user_id = $1 AND plan_name <> $2",
			userID, models.PlanFree)
		if err != nil {
			return fmt.Errorf("failed to count remaining plans: %w", err)
		}
		if others > 0 {
			return ErrFreePlanRequired
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM user_plans WHERE user_id = $1 AND plan_name = $2",
		userID, planName); err != nil {
		return fmt.Errorf("failed to revoke plan %q: %w", planName, err)
	}

	if err := s.syncAllowedAssistants(ctx, tx, userID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit revoke: %w", err)
	}

	s.invalidateProfileCache(ctx, userID)
	s.logger.Info("Plan revoked", "user_id", userID, "plan", planName)
	return nil
}

// Plans lists the user's grants, newest first.
func (s *Service) Plans(ctx context.Context, userID string) ([]models.UserPlan, error) {
	var plans []models.UserPlan
	err := s.db.DB.SelectContext(ctx, &plans,
		"SELECT user_id, plan_name, expires_at, created_at FROM user_plans WHERE user_id = $1 ORDER BY created_at DESC",
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// syncAllowedAssistants projects the user's active grants into the
// profiles.allowed_assistants column the predicate reads.
func (s *Service) syncAllowedAssistants(ctx context.Context, tx *sqlx.Tx, userID string) error {
	var names []string
	err := tx.SelectContext(ctx, &names,
		"SELECT plan_name FROM user_plans WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > NOW()) ORDER BY plan_name",
		userID)
	if err != nil {
		return fmt.Errorf("failed to read active plans: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE profiles SET allowed_assistants = $1, updated_at = NOW() WHERE id = $2",
		pq.StringArray(names), userID); err != nil {
		return fmt.Errorf("failed to sync allowed assistants: %w", err)
	}
	return nil
}

func (s *Service) invalidateProfileCache(ctx context.Context, userID string) {
	key := fmt.Sprintf("profile:%s", userID)
	if err := s.db.Redis.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Failed to invalidate profile cache", "user_id", userID, "error", err)
	}
}
