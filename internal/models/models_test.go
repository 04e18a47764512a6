package models

import (
	"errors"
	"strings"
	"testing"
)

func TestNewUserProfileDefaults(t *testing.T) {
	p := NewUserProfile("+919876543210")
	if p.PhoneNumber != "+919876543210" {
		t.Errorf("expected phone number to be kept, got %q", p.PhoneNumber)
	}
	if p.Language != "English" {
		t.Errorf("expected default language English, got %q", p.Language)
	}
	if p.Age != nil || p.HasDiabetes || p.HasHypertension || p.OtherConditions != "" {
		t.Errorf("expected optional fields empty, got %+v", p)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default profile should validate, got %v", err)
	}
}

func TestUserProfileValidate(t *testing.T) {
	tooOld := 151
	negative := -1
	ok := 42

	tests := []struct {
		name    string
		profile UserProfile
		wantErr error
	}{
		{"empty phone", UserProfile{Language: "Odia"}, ErrEmptyPhone},
		{"age too high", UserProfile{PhoneNumber: "+1", Age: &tooOld}, ErrInvalidAge},
		{"negative age", UserProfile{PhoneNumber: "+1", Age: &negative}, ErrInvalidAge},
		{"valid age", UserProfile{PhoneNumber: "+1", Age: &ok}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.profile.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPreferredLanguageFallback(t *testing.T) {
	p := UserProfile{PhoneNumber: "+1"}
	if got := p.PreferredLanguage(); got != DefaultLanguage {
		t.Errorf("expected %q, got %q", DefaultLanguage, got)
	}
	p.Language = "Hindi"
	if got := p.PreferredLanguage(); got != "Hindi" {
		t.Errorf("expected Hindi, got %q", got)
	}
}

func TestChatMessageValidate(t *testing.T) {
	msg := NewChatMessage("+1", SenderUser, "hello")
	if err := msg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg.Sender = "doctor"
	if err := msg.Validate(); !errors.Is(err, ErrInvalidSender) {
		t.Errorf("expected ErrInvalidSender, got %v", err)
	}

	msg = NewChatMessage("", SenderBot, "hi")
	if err := msg.Validate(); !errors.Is(err, ErrEmptyPhone) {
		t.Errorf("expected ErrEmptyPhone, got %v", err)
	}

	msg = NewChatMessage("+1", SenderBot, strings.Repeat("ଓ", 5000))
	if err := msg.Validate(); err != nil {
		t.Errorf("long multibyte text must be accepted, got %v", err)
	}
	msg = NewChatMessage("+1", SenderUser, "")
	if err := msg.Validate(); err != nil {
		t.Errorf("empty text must be accepted, got %v", err)
	}
}

func TestSenderLabel(t *testing.T) {
	if SenderUser.Label() != "User" || SenderBot.Label() != "Bot" {
		t.Errorf("unexpected labels: %q %q", SenderUser.Label(), SenderBot.Label())
	}
}

func TestAPIResponseHelpers(t *testing.T) {
	ok := Success(map[string]int{"n": 1})
	if ok.Status != "ok" || ok.Result == nil {
		t.Errorf("unexpected success response: %+v", ok)
	}
	e := Error("boom")
	if e.Status != "error" || e.Message != "boom" {
		t.Errorf("unexpected error response: %+v", e)
	}
}
