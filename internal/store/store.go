// Package store provides storage backends for ArogyaMitra.
//
// It persists user profiles and chat history in SQLite, PostgreSQL, or memory.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// DefaultHistoryLimit is the number of turns returned when a caller passes a non-positive limit.
const DefaultHistoryLimit = 5

// Store is the persistence contract for user profiles and chat history.
type Store interface {
	// GetUser returns the profile for a phone number, or nil when none exists.
	GetUser(ctx context.Context, phone string) (*models.UserProfile, error)
	// UpsertUser inserts a profile or replaces the existing one with the same phone number.
	UpsertUser(ctx context.Context, profile models.UserProfile) error
	// AddChatMessage appends one turn to the chat history.
	AddChatMessage(ctx context.Context, msg models.ChatMessage) error
	// GetChatHistory returns at most limit of the most recent turns, oldest first.
	GetChatHistory(ctx context.Context, phone string, limit int) ([]models.ChatMessage, error)
	// Close releases the underlying resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN  string // database connection string
	Type string // "sqlite", "postgres" or "memory"
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN selects the SQLite backend with the given database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "sqlite"
	}
}

// WithPostgresDSN selects the PostgreSQL backend with the given connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
		o.Type = "postgres"
	}
}

// WithInMemory selects the non-persistent in-memory backend.
func WithInMemory() Option {
	return func(o *Opts) {
		o.DSN = ""
		o.Type = "memory"
	}
}

// DetectDSNType classifies a DSN as "postgres", "memory" or "sqlite3".
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	switch {
	case d == "" || d == "memory" || d == ":memory:":
		return "memory"
	case strings.HasPrefix(d, "postgres://"), strings.HasPrefix(d, "postgresql://"):
		return "postgres"
	case strings.Contains(d, "host="):
		return "postgres"
	case strings.Contains(d, "=") && strings.Contains(d, " "):
		// key=value pairs separated by spaces
		return "postgres"
	default:
		return "sqlite3"
	}
}

// New opens the backend selected by the options. Without options it returns an InMemoryStore.
func New(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("store.New: selecting backend", "type", cfg.Type, "dsn_set", cfg.DSN != "")

	switch cfg.Type {
	case "postgres":
		return NewPostgresStore(opts...)
	case "sqlite":
		return NewSQLiteStore(opts...)
	case "", "memory":
		slog.Warn("store.New: using in-memory store, data will not survive a restart")
		return NewInMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store type %q", cfg.Type)
	}
}

// normalizeLimit maps a non-positive history limit to DefaultHistoryLimit.
func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultHistoryLimit
	}
	return limit
}

// InMemoryStore is a simple in-memory store for profiles and chat history.
type InMemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.UserProfile
	messages []models.ChatMessage
	nextID   int64
	now      func() time.Time
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users: make(map[string]models.UserProfile),
		now:   time.Now,
	}
}

func (s *InMemoryStore) GetUser(ctx context.Context, phone string) (*models.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[phone]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

func (s *InMemoryStore) UpsertUser(ctx context.Context, profile models.UserProfile) error {
	if err := profile.Validate(); err != nil {
		return fmt.Errorf("invalid profile: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[profile.PhoneNumber] = *cloneProfile(profile)
	return nil
}

func (s *InMemoryStore) AddChatMessage(ctx context.Context, msg models.ChatMessage) error {
	if err := msg.Validate(); err != nil {
		return fmt.Errorf("invalid chat message: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	msg.ID = s.nextID
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}
	s.messages = append(s.messages, msg)
	return nil
}

func (s *InMemoryStore) GetChatHistory(ctx context.Context, phone string, limit int) ([]models.ChatMessage, error) {
	limit = normalizeLimit(limit)
	s.mu.RLock()
	var matched []models.ChatMessage
	for _, m := range s.messages {
		if m.PhoneNumber == phone {
			matched = append(matched, m)
		}
	}
	s.mu.RUnlock()

	// Newest first, as a database would return them, then trimmed and reversed.
	sort.SliceStable(matched, func(i, j int) bool { return newerThan(matched[i], matched[j]) })
	if len(matched) > limit {
		matched = matched[:limit]
	}
	reverseMessages(matched)
	return matched, nil
}

// UserCount returns the number of stored profiles.
func (s *InMemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// Messages returns a copy of every stored turn in insertion order.
func (s *InMemoryStore) Messages() []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *InMemoryStore) Close() error {
	return nil
}

func cloneProfile(p models.UserProfile) *models.UserProfile {
	if p.Age != nil {
		age := *p.Age
		p.Age = &age
	}
	return &p
}

// newerThan orders by creation time, breaking ties with the insertion id.
func newerThan(a, b models.ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}
