package main

import (
	"log/slog"
	"os"

	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/api"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/config"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/pkg/supabase"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/internal/webhook"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/database"
	"github.com/riohdigital/rio-digital-hub-connect-sub000/pkg/kafka"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	slog.Info("✅ Connected to databases")

	if err := db.CreateProfilesTable(); err != nil {
		slog.Error("Failed to ensure profiles table", "error", err)
		os.Exit(1)
	}
	if err := db.CreateUserPlansTable(); err != nil {
		slog.Error("Failed to ensure user_plans table", "error", err)
		os.Exit(1)
	}

	// Initialize the hosted auth service client
	auth, err := supabase.NewClient(cfg.Supabase.URL, cfg.Supabase.AnonKey,
		cfg.Supabase.SiteURL+"/dashboard", slog.Default())
	if err != nil {
		slog.Error("Failed to initialize Supabase client", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	hook := webhook.NewHTTPClient(cfg.Assistants.WebhookTimeout)

	// Create and start server
	server, err := api.NewServer(cfg, db, producer, auth, hook)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
