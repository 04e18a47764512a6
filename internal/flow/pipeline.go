package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/ArogyaMitra/internal/genai"
	"github.com/BTreeMap/ArogyaMitra/internal/knowledge"
	"github.com/BTreeMap/ArogyaMitra/internal/models"
	"github.com/BTreeMap/ArogyaMitra/internal/store"
)

// ConversationStore is the persistence the pipeline needs.
type ConversationStore interface {
	GetUser(ctx context.Context, phone string) (*models.UserProfile, error)
	UpsertUser(ctx context.Context, profile models.UserProfile) error
	AddChatMessage(ctx context.Context, msg models.ChatMessage) error
	GetChatHistory(ctx context.Context, phone string, limit int) ([]models.ChatMessage, error)
}

// Responder generates a reply; it always returns text to send.
type Responder interface {
	Reply(ctx context.Context, in genai.PromptInput) string
}

// Notifier delivers a reply to the user.
type Notifier interface {
	Send(ctx context.Context, to string, body string) error
}

// KnowledgeMatcher finds reference information relevant to a message.
type KnowledgeMatcher interface {
	Match(text string) (knowledge.Record, bool)
}

// Pipeline produces, records and sends the reply to one non-critical message.
type Pipeline struct {
	store        ConversationStore
	responder    Responder
	notifier     Notifier
	knowledge    KnowledgeMatcher
	historyLimit int
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithHistoryLimit sets how many past turns are included in the prompt.
func WithHistoryLimit(n int) PipelineOption {
	return func(p *Pipeline) {
		p.historyLimit = n
	}
}

// WithKnowledge enables reference lookups against the knowledge base.
func WithKnowledge(k KnowledgeMatcher) PipelineOption {
	return func(p *Pipeline) {
		p.knowledge = k
	}
}

// NewPipeline creates a Pipeline over the given collaborators.
func NewPipeline(st ConversationStore, responder Responder, notifier Notifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:        st,
		responder:    responder,
		notifier:     notifier,
		historyLimit: store.DefaultHistoryLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs the steps in order: profile, history, reference lookup, reply generation,
// user turn, bot turn, send. Every failure is logged and replaced by a safe default
// so that the user still gets a reply.
func (p *Pipeline) Process(ctx context.Context, phone string, message string) {
	profile := p.loadProfile(ctx, phone)

	history, err := p.store.GetChatHistory(ctx, phone, p.historyLimit)
	if err != nil {
		slog.Error("Pipeline.Process: failed to load history, continuing without it", "phone", phone, "error", err)
		history = nil
	}

	var reference map[string]string
	if p.knowledge != nil {
		if rec, ok := p.knowledge.Match(message); ok {
			slog.Debug("Pipeline.Process: using reference information", "phone", phone, "topic", rec.Topic())
			reference = rec
		}
	}

	reply := p.responder.Reply(ctx, genai.PromptInput{
		Message:   message,
		Profile:   profile,
		History:   history,
		Reference: reference,
	})

	p.record(ctx, models.NewChatMessage(phone, models.SenderUser, message))
	p.record(ctx, models.NewChatMessage(phone, models.SenderBot, reply))

	if err := p.notifier.Send(ctx, phone, reply); err != nil {
		slog.Error("Pipeline.Process: reply not delivered", "phone", phone, "error", err)
		return
	}
	slog.Info("Pipeline.Process: reply sent", "phone", phone, "history_turns", len(history))
}

// loadProfile returns the stored profile, creating and saving the default profile when
// none can be read.
func (p *Pipeline) loadProfile(ctx context.Context, phone string) models.UserProfile {
	existing, err := p.store.GetUser(ctx, phone)
	if err != nil {
		slog.Error("Pipeline.loadProfile: lookup failed, treating as new user", "phone", phone, "error", err)
	}
	if existing != nil {
		return *existing
	}

	profile := models.NewUserProfile(phone)
	if err := p.store.UpsertUser(ctx, profile); err != nil {
		slog.Error("Pipeline.loadProfile: failed to save new profile", "phone", phone, "error", err)
	} else {
		slog.Info("Pipeline.loadProfile: created profile for new user", "phone", phone)
	}
	return profile
}

func (p *Pipeline) record(ctx context.Context, msg models.ChatMessage) {
	if err := p.store.AddChatMessage(ctx, msg); err != nil {
		slog.Error("Pipeline.record: failed to save chat turn", "phone", msg.PhoneNumber, "sender", msg.Sender, "error", err)
	}
}
