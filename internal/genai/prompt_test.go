package genai

import (
	"strings"
	"testing"

	"github.com/BTreeMap/ArogyaMitra/internal/models"
)

func TestProfileSummary(t *testing.T) {
	age := 45
	tests := []struct {
		name    string
		profile models.UserProfile
		want    string
	}{
		{
			name:    "defaults",
			profile: models.NewUserProfile("+1"),
			want:    "Language: English, Age: Not provided",
		},
		{
			name: "all fields",
			profile: models.UserProfile{
				PhoneNumber:     "+1",
				Language:        "Odia",
				Age:             &age,
				HasDiabetes:     true,
				HasHypertension: true,
				OtherConditions: "asthma",
			},
			want: "Language: Odia, Age: 45, Condition: Diabetes, Condition: Hypertension, Other Conditions: asthma",
		},
		{
			name:    "empty language falls back",
			profile: models.UserProfile{PhoneNumber: "+1", HasHypertension: true},
			want:    "Language: English, Age: Not provided, Condition: Hypertension",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ProfileSummary(tt.profile); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHistoryText(t *testing.T) {
	history := []models.ChatMessage{
		models.NewChatMessage("+1", models.SenderUser, "I have a fever"),
		models.NewChatMessage("+1", models.SenderBot, "How long have you had it?"),
	}
	want := "User: I have a fever\nBot: How long have you had it?"
	if got := HistoryText(history); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if HistoryText(nil) != "" {
		t.Error("expected empty history text")
	}
}

func TestBuildPromptSectionsInOrder(t *testing.T) {
	prompt := BuildPrompt(PromptInput{
		Message: "Is dengue contagious?",
		Profile: models.NewUserProfile("+1"),
		History: []models.ChatMessage{models.NewChatMessage("+1", models.SenderUser, "hello")},
		Reference: map[string]string{
			"topic":      "Dengue",
			"prevention": "Avoid mosquito bites",
			"notes":      "",
		},
	})

	order := []string{
		SystemInstruction,
		"Language: English, Age: Not provided",
		"User: hello",
		"**Reference Health Information:**\nTopic: Dengue\nprevention: Avoid mosquito bites",
		"**Current User Message:**\nIs dengue contagious?",
	}
	pos := -1
	for _, part := range order {
		i := strings.Index(prompt, part)
		if i < 0 {
			t.Fatalf("prompt missing %q:\n%s", part, prompt)
		}
		if i <= pos {
			t.Errorf("section %q out of order", part)
		}
		pos = i
	}
	if strings.Contains(prompt, "notes:") {
		t.Error("empty reference fields should be omitted")
	}
}

func TestBuildPromptWithoutReference(t *testing.T) {
	prompt := BuildPrompt(PromptInput{Message: "hi", Profile: models.NewUserProfile("+1")})
	if strings.Contains(prompt, "Reference Health Information") {
		t.Error("reference section should be omitted when no record matched")
	}
	if !strings.HasSuffix(prompt, "**Current User Message:**\nhi") {
		t.Errorf("prompt should end with the current message:\n%s", prompt)
	}
}
