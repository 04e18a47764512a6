// Package models defines the core data structures for ArogyaMitra.
//
// It includes the user profile and chat message records shared by the store,
// the conversation flow and the GenAI prompt builder.
package models

import (
	"errors"
	"fmt"
	"time"
)

// DefaultLanguage is assigned to profiles created for unseen phone numbers.
const DefaultLanguage = "English"

// MaxAge is the upper bound accepted for a profile age.
const MaxAge = 150

// Error variables for better error handling and testability
var (
	ErrEmptyPhone    = errors.New("phone number cannot be empty")
	ErrInvalidAge    = errors.New("age out of range")
	ErrInvalidSender = errors.New("invalid sender")
)

// Sender tags who authored a chat turn.
type Sender string

const (
	// SenderUser marks a turn written by the person texting in.
	SenderUser Sender = "user"
	// SenderBot marks a turn generated by the assistant.
	SenderBot Sender = "bot"
)

// IsValidSender checks if the given sender tag is supported.
func IsValidSender(s Sender) bool {
	switch s {
	case SenderUser, SenderBot:
		return true
	default:
		return false
	}
}

// Label returns the capitalized form used when rendering history ("User", "Bot").
func (s Sender) Label() string {
	switch s {
	case SenderUser:
		return "User"
	case SenderBot:
		return "Bot"
	default:
		return string(s)
	}
}

// UserProfile is the per-phone-number record of language preference and health attributes.
type UserProfile struct {
	PhoneNumber     string `json:"phone_number"`
	Language        string `json:"language"`
	Age             *int   `json:"age,omitempty"`
	HasDiabetes     bool   `json:"has_diabetes"`
	HasHypertension bool   `json:"has_hypertension"`
	OtherConditions string `json:"other_conditions,omitempty"`
}

// NewUserProfile returns the default profile for a phone number seen for the first time.
func NewUserProfile(phone string) UserProfile {
	return UserProfile{PhoneNumber: phone, Language: DefaultLanguage}
}

// Validate checks the structural constraints of a profile.
func (p *UserProfile) Validate() error {
	if p.PhoneNumber == "" {
		return ErrEmptyPhone
	}
	if p.Age != nil && (*p.Age < 0 || *p.Age > MaxAge) {
		return fmt.Errorf("%w: %d", ErrInvalidAge, *p.Age)
	}
	return nil
}

// PreferredLanguage returns the profile language, falling back to DefaultLanguage.
func (p *UserProfile) PreferredLanguage() string {
	if p.Language == "" {
		return DefaultLanguage
	}
	return p.Language
}

// ChatMessage is one stored turn of a conversation.
type ChatMessage struct {
	ID          int64     `json:"id,omitempty"`
	PhoneNumber string    `json:"phone_number"`
	Sender      Sender    `json:"sender"`
	MessageText string    `json:"message_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewChatMessage builds an unsaved turn; ID and CreatedAt are assigned by the store.
func NewChatMessage(phone string, sender Sender, text string) ChatMessage {
	return ChatMessage{PhoneNumber: phone, Sender: sender, MessageText: text}
}

// Validate checks the structural constraints of a chat message. Text is stored as given,
// including empty or very long turns.
func (m *ChatMessage) Validate() error {
	if m.PhoneNumber == "" {
		return ErrEmptyPhone
	}
	if !IsValidSender(m.Sender) {
		return fmt.Errorf("%w: %q", ErrInvalidSender, m.Sender)
	}
	return nil
}

// InboundMessage is a message received from a gateway, before dispatch.
type InboundMessage struct {
	From       string    `json:"from"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}
