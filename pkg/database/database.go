package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr string) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// CreateProfilesTable creates the profiles relation, one row per auth user.
func (c *Clients) CreateProfilesTable() error {
	schema := `CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL DEFAULT '',
		avatar_url TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL DEFAULT 'basic_user',
		plan TEXT NOT NULL DEFAULT 'free',
		allowed_assistants TEXT[],
		whatsapp_jid TEXT NOT NULL DEFAULT '',
		google_access_token TEXT NOT NULL DEFAULT '',
		google_refresh_token TEXT NOT NULL DEFAULT '',
		google_token_expiry TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create profiles table: %w", err)
	}

	slog.Info("✅ Profiles table is ready!")
	return nil
}

// CreateUserPlansTable creates the user_plans relation backing the admin
// entitlement workflow.
func (c *Clients) CreateUserPlansTable() error {
	schema := `CREATE TABLE IF NOT EXISTS user_plans (
		user_id UUID NOT NULL,
		plan_name TEXT NOT NULL,
		expires_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, plan_name)
	);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create user_plans table: %w", err)
	}

	slog.Info("✅ User plans table is ready!")
	return nil
}

// CreateAuthEventsTable creates the audit trail written by the worker.
func (c *Clients) CreateAuthEventsTable() error {
	schema := `CREATE TABLE IF NOT EXISTS auth_events (
		id UUID PRIMARY KEY,
		user_id UUID,
		event_type TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create auth_events table: %w", err)
	}

	slog.Info("✅ Auth events table is ready!")
	return nil
}
