// Package store provides storage backends for ArogyaMitra.
//
// This file implements an SQLite-backed store for profiles and chat history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	// A single writer avoids SQLITE_BUSY between concurrent background tasks.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully", "path", dsn)

	return &SQLiteStore{db: db}, nil
}

// GetUser returns the profile for phone, or nil when it does not exist.
func (s *SQLiteStore) GetUser(ctx context.Context, phone string) (*models.UserProfile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT phone_number, language, age, has_diabetes, has_hypertension, other_conditions
		 FROM users WHERE phone_number = ?`, phone)
	p, err := scanUser(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetUser not found", "phone", phone)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetUser failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to get user %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore GetUser found", "phone", phone)
	return p, nil
}

// UpsertUser inserts or replaces the profile keyed by its phone number.
func (s *SQLiteStore) UpsertUser(ctx context.Context, p models.UserProfile) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	query := `
		INSERT INTO users (phone_number, language, age, has_diabetes, has_hypertension, other_conditions, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (phone_number) DO UPDATE SET
			language = excluded.language,
			age = excluded.age,
			has_diabetes = excluded.has_diabetes,
			has_hypertension = excluded.has_hypertension,
			other_conditions = excluded.other_conditions,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query, p.PhoneNumber, p.PreferredLanguage(), nullableAge(p.Age),
		p.HasDiabetes, p.HasHypertension, nilIfEmpty(p.OtherConditions), time.Now().UTC())
	if err != nil {
		slog.Error("SQLiteStore UpsertUser failed", "error", err, "phone", p.PhoneNumber)
		return fmt.Errorf("failed to upsert user %s: %w", p.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore UpsertUser succeeded", "phone", p.PhoneNumber)
	return nil
}

// AddChatMessage appends one turn. The creation time is assigned here when unset.
func (s *SQLiteStore) AddChatMessage(ctx context.Context, m models.ChatMessage) error {
	if err := m.Validate(); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (phone_number, sender, message_text, created_at) VALUES (?, ?, ?, ?)`,
		m.PhoneNumber, string(m.Sender), m.MessageText, createdAt)
	if err != nil {
		slog.Error("SQLiteStore AddChatMessage failed", "error", err, "phone", m.PhoneNumber, "sender", m.Sender)
		return fmt.Errorf("failed to insert chat message for %s: %w", m.PhoneNumber, err)
	}
	slog.Debug("SQLiteStore AddChatMessage succeeded", "phone", m.PhoneNumber, "sender", m.Sender)
	return nil
}

// GetChatHistory returns the latest limit turns for phone in chronological order.
func (s *SQLiteStore) GetChatHistory(ctx context.Context, phone string, limit int) ([]models.ChatMessage, error) {
	limit = normalizeLimit(limit)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, phone_number, sender, message_text, created_at
		 FROM chat_history WHERE phone_number = ?
		 ORDER BY created_at DESC, id DESC LIMIT ?`, phone, limit)
	if err != nil {
		slog.Error("SQLiteStore GetChatHistory query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query chat history for %s: %w", phone, err)
	}
	defer rows.Close()

	msgs, err := scanChatMessages(rows)
	if err != nil {
		slog.Error("SQLiteStore GetChatHistory scan failed", "error", err, "phone", phone)
		return nil, err
	}
	reverseMessages(msgs)
	slog.Debug("SQLiteStore GetChatHistory succeeded", "phone", phone, "count", len(msgs))
	return msgs, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
