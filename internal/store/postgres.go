// Package store provides storage backends for ArogyaMitra.
//
// This file implements a PostgreSQL-backed store for profiles and chat history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

// GetUser returns the profile for phone, or nil when it does not exist.
func (s *PostgresStore) GetUser(ctx context.Context, phone string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phone_number, language, age, has_diabetes, has_hypertension, other_conditions
		 FROM users WHERE phone_number = $1`, phone)
	p, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetUser not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user %s: %w", phone, err)
	}
	slog.Debug("PostgresStore GetUser found", "phone", phone)
	return p, nil
}

// UpsertUser inserts or replaces the profile keyed by its phone number.
func (s *PostgresStore) UpsertUser(ctx context.Context, p models.UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	query := `
		INSERT INTO users (phone_number, language, age, has_diabetes, has_hypertension, other_conditions, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (phone_number)
		DO UPDATE SET
			language = EXCLUDED.language,
			age = EXCLUDED.age,
			has_diabetes = EXCLUDED.has_diabetes,
			has_hypertension = EXCLUDED.has_hypertension,
			other_conditions = EXCLUDED.other_conditions,
			updated_at = EXCLUDED.updated_at`

	_, err := s.db.ExecContext(ctx, query, p.PhoneNumber, p.PreferredLanguage(), nullableAge(p.Age),
		p.HasDiabetes, p.HasHypertension, nilIfEmpty(p.OtherConditions))
	if err != nil {
		slog.Error("PostgresStore UpsertUser failed", "error", err, "phone", p.PhoneNumber)
		return fmt.Errorf("failed to upsert user %s: %w", p.PhoneNumber, err)
	}
	slog.Debug("PostgresStore UpsertUser succeeded", "phone", p.PhoneNumber)
	return nil
}

// AddChatMessage appends one turn; created_at defaults to the database clock.
func (s *PostgresStore) AddChatMessage(ctx context.Context, m models.ChatMessage) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}
	var err error
	if m.CreatedAt.IsZero() {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO chat_history (phone_number, sender, message_text) VALUES ($1, $2, $3)`,
			m.PhoneNumber, string(m.Sender), m.MessageText)
	} else {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO chat_history (phone_number, sender, message_text, created_at) VALUES ($1, $2, $3, $4)`,
			m.PhoneNumber, string(m.Sender), m.MessageText, m.CreatedAt)
	}
	if err != nil {
		slog.Error("PostgresStore AddChatMessage failed", "error", err, "phone", m.PhoneNumber, "sender", m.Sender)
		return fmt.Errorf("failed to insert chat message for %s: %w", m.PhoneNumber, err)
	}
	slog.Debug("PostgresStore AddChatMessage succeeded", "phone", m.PhoneNumber, "sender", m.Sender)
	return nil
}

// GetChatHistory returns the latest limit turns for phone in chronological order.
func (s *PostgresStore) GetChatHistory(ctx context.Context, phone string, limit int) ([]models.ChatMessage, error) {
	limit = normalizeLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, sender, message_text, created_at
		 FROM chat_history WHERE phone_number = $1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, phone, limit)
	if err != nil {
		slog.Error("PostgresStore GetChatHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query chat history for %s: %w", phone, err)
	}
	defer rows.Close()

	msgs, err := scanChatMessages(rows)
	if err != nil {
		slog.Error("PostgresStore GetChatHistory scan failed", "error", err, "phone", phone)
		return nil, err
	}
	reverseMessages(msgs)
	slog.Debug("PostgresStore GetChatHistory succeeded", "phone", phone, "count", len(msgs))
	return msgs, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close PostgreSQL database", "error", err)
	}
	return err
}
