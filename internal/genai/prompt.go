package genai

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

// SystemInstruction frames every request.
const SystemInstruction = "You are Arogya Mitra, a friendly, empathetic, and helpful AI public health assistant for the people of Odisha. " +
	"Your goal is to provide safe, general health information and guidance based on the user's profile and query. " +
	"You are NOT a doctor and must NEVER provide a medical diagnosis. Always respond in the user's preferred language. " +
	"Always conclude your health-related advice with a clear disclaimer to consult a registered medical practitioner."

const sectionSeparator = "\n\n---\n\n"

// PromptInput carries everything rendered into one completion request.
type PromptInput struct {
	Message   string
	Profile   models.UserProfile
	History   []models.ChatMessage // oldest first
	Reference map[string]string    // optional knowledge sheet row
}

// BuildPrompt renders the composite prompt: system instruction, profile summary,
// recent history, optional reference information and the current message.
func BuildPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("**System Instruction:**\n")
	b.WriteString(SystemInstruction)

	b.WriteString(sectionSeparator)
	b.WriteString("**User's Health Profile:**\n")
	b.WriteString(ProfileSummary(in.Profile))

	b.WriteString(sectionSeparator)
	b.WriteString("**Recent Conversation History:**\n")
	b.WriteString(HistoryText(in.History))

	if ref := referenceText(in.Reference); ref != "" {
		b.WriteString(sectionSeparator)
		b.WriteString("**Reference Health Information:**\n")
		b.WriteString(ref)
	}

	b.WriteString(sectionSeparator)
	b.WriteString("**Current User Message:**\n")
	b.WriteString(in.Message)
	return b.String()
}

// ProfileSummary renders a profile as a single line, e.g.
// "Language: Odia, Age: 45, Condition: Diabetes".
func ProfileSummary(p models.UserProfile) string {
	age := "Not provided"
	if p.Age != nil {
		age = strconv.Itoa(*p.Age)
	}
	s := fmt.Sprintf("Language: %s, Age: %s", p.PreferredLanguage(), age)
	if p.HasDiabetes {
		s += ", Condition: Diabetes"
	}
	if p.HasHypertension {
		s += ", Condition: Hypertension"
	}
	if p.OtherConditions != "" {
		s += ", Other Conditions: " + p.OtherConditions
	}
	return s
}

// HistoryText renders one "User: ..." or "Bot: ..." line per turn.
func HistoryText(history []models.ChatMessage) string {
	lines := make([]string, 0, len(history))
	for _, m := range history {
		lines = append(lines, m.Sender.Label()+": "+m.MessageText)
	}
	return strings.Join(lines, "\n")
}

// referenceText renders a knowledge row with the topic first and the remaining
// non-empty fields sorted by header.
func referenceText(ref map[string]string) string {
	if len(ref) == 0 {
		return ""
	}
	keys := make([]string, 0, len(ref))
	for k, v := range ref {
		if v != "" && !strings.EqualFold(k, "topic") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var lines []string
	for k, v := range ref {
		if strings.EqualFold(k, "topic") && v != "" {
			lines = append(lines, "Topic: "+v)
		}
	}
	for _, k := range keys {
		lines = append(lines, k+": "+ref[k])
	}
	return strings.Join(lines, "\n")
}
