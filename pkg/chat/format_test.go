package chat

import (
	"testing"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

func TestFromTurns(t *testing.T) {
	now := time.Now()
	turns := []story.Turn{
		story.NewTurn(story.SpeakerSystem, "Starting a new story", now),
		story.NewTurn(story.SpeakerUser, "Open the door.", now),
		story.NewTurn(story.SpeakerAssistant, "The door creaks open.", now),
	}

	msgs := FromTurns(turns)
	if len(msgs) != 3 {
		t.Fatalf("Expected 3 messages, got %d", len(msgs))
	}

	expectedRoles := []string{ChatRoleAgent, ChatRoleUser, ChatRoleAgent}
	for i, role := range expectedRoles {
		if msgs[i].Role != role {
			t.Errorf("Message %d: expected role %s, got %s", i, role, msgs[i].Role)
		}
		if msgs[i].Content != turns[i].Text {
			t.Errorf("Message %d: expected content %q, got %q", i, turns[i].Text, msgs[i].Content)
		}
	}
}

func TestCollapse(t *testing.T) {
	tests := []struct {
		name     string
		input    []ChatMessage
		expected []ChatMessage
	}{
		{
			name:     "empty input",
			input:    nil,
			expected: nil,
		},
		{
			name: "alternating roles are untouched",
			input: []ChatMessage{
				{Role: ChatRoleUser, Content: "a"},
				{Role: ChatRoleAgent, Content: "b"},
			},
			expected: []ChatMessage{
				{Role: ChatRoleUser, Content: "a"},
				{Role: ChatRoleAgent, Content: "b"},
			},
		},
		{
			name: "consecutive roles merge",
			input: []ChatMessage{
				{Role: ChatRoleAgent, Content: "intro"},
				{Role: ChatRoleAgent, Content: "more"},
				{Role: ChatRoleUser, Content: "go"},
			},
			expected: []ChatMessage{
				{Role: ChatRoleAgent, Content: "intro\n\nmore"},
				{Role: ChatRoleUser, Content: "go"},
			},
		},
		{
			name: "blank messages dropped",
			input: []ChatMessage{
				{Role: ChatRoleUser, Content: "hi"},
				{Role: ChatRoleAgent, Content: "  "},
				{Role: ChatRoleUser, Content: "again"},
			},
			expected: []ChatMessage{
				{Role: ChatRoleUser, Content: "hi\n\nagain"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Collapse(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %d messages, got %d: %+v", len(tt.expected), len(result), result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("Message %d: expected %+v, got %+v", i, tt.expected[i], result[i])
				}
			}
		})
	}
}

func TestSplitSystem(t *testing.T) {
	msgs := []ChatMessage{
		{Role: ChatRoleSystem, Content: "Rule one."},
		{Role: ChatRoleSystem, Content: "Rule two."},
		{Role: ChatRoleUser, Content: "Hi"},
		{Role: ChatRoleSystem, Content: "late"},
	}
	system, rest := SplitSystem(msgs)
	if system != "Rule one.\n\nRule two." {
		t.Errorf("Unexpected system prompt %q", system)
	}
	if len(rest) != 2 || rest[0].Content != "Hi" || rest[1].Content != "late" {
		t.Errorf("Unexpected remainder %+v", rest)
	}

	system, rest = SplitSystem(nil)
	if system != "" || len(rest) != 0 {
		t.Errorf("Expected empty split, got %q %+v", system, rest)
	}
}
