// Package flow routes inbound messages for ArogyaMitra.
//
// Each message is triaged against a list of critical phrases. Critical messages get a
// fixed emergency referral; all others run through the reply pipeline on a supervised
// background task.
package flow

import (
	"strings"
)

// CriticalResponseMessage is sent verbatim when a critical phrase is detected.
const CriticalResponseMessage = "This seems like a critical situation. Please contact emergency services immediately by calling 108. This is an AI assistant and not a substitute for a medical professional."

// DefaultCriticalKeywords are the lowercase phrases that trigger the emergency referral.
var DefaultCriticalKeywords = []string{
	"suicide",
	"kill myself",
	"want to die",
	"heart attack",
	"chest pain",
	"can't breathe",
	"can’t breathe",
	"unconscious",
	"poison",
	"accident",
	"bleeding heavily",
}

// IsCritical reports whether the trimmed, lowercased text contains any of keywords.
func IsCritical(text string, keywords []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return false
	}
	for _, kw := range keywords {
		if kw != "" && strings.Contains(normalized, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
