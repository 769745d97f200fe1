package seed

import (
	"testing"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

var fixedNow = time.Date(2025, 6, 1, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

type want struct {
	speaker story.Speaker
	text    string
}

func TestSegmentAt(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []want
	}{
		{
			name:  "two speakers with continuation line",
			input: "User: Hi\nAssistant: Hello there\nMore text",
			want: []want{
				{story.SpeakerUser, "Hi"},
				{story.SpeakerAssistant, "Hello there\nMore text"},
			},
		},
		{
			name:  "no markers becomes one user turn",
			input: "just some prose, no markers",
			want:  []want{{story.SpeakerUser, "just some prose, no markers"}},
		},
		{
			name:  "case insensitive markers with timestamps",
			input: "USER (2024-05-01T10:00:00Z): Open the gate\nassistant (2024-05-01 10:00:05): It groans open.",
			want: []want{
				{story.SpeakerUser, "Open the gate"},
				{story.SpeakerAssistant, "It groans open."},
			},
		},
		{
			name:  "lettered options stay in the turn",
			input: "Assistant: Choose your path.\nA) The bridge\nB) The river",
			want:  []want{{story.SpeakerAssistant, "Choose your path.\nA) The bridge\nB) The river"}},
		},
		{
			name:  "memory lines are normalized and noise is dropped",
			input: "User: I remember.\nADD_MEMORY: the key is under the mat\n[No source_id provided]\nAssistant: Noted.",
			want: []want{
				{story.SpeakerUser, "I remember.\nMemory added: the key is under the mat"},
				{story.SpeakerAssistant, "Noted."},
			},
		},
		{
			name:  "marker on its own line",
			input: "User:\nLook around.\n\nAssistant:\nYou see fog.",
			want: []want{
				{story.SpeakerUser, "Look around."},
				{story.SpeakerAssistant, "You see fog."},
			},
		},
		{
			name:  "empty turn is skipped",
			input: "User:\nAssistant: Hello",
			want:  []want{{story.SpeakerAssistant, "Hello"}},
		},
		{
			name:  "words that start with a speaker name are prose",
			input: "Assistant: The log reads:\nUsername: admin",
			want:  []want{{story.SpeakerAssistant, "The log reads:\nUsername: admin"}},
		},
		{
			name:  "empty input",
			input: "  \n\n ",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentAt(tt.input, clock)
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d turns, got %d: %+v", len(tt.want), len(got), got)
			}
			for i, w := range tt.want {
				if got[i].Speaker != w.speaker {
					t.Errorf("turn %d: expected speaker %s, got %s", i, w.speaker, got[i].Speaker)
				}
				if got[i].Text != w.text {
					t.Errorf("turn %d: expected text %q, got %q", i, w.text, got[i].Text)
				}
				if got[i].ID == "" {
					t.Errorf("turn %d: missing ID", i)
				}
			}
		})
	}
}

func TestSegmentAt_Timestamps(t *testing.T) {
	input := "User (2024-05-01T10:00:00Z): one\n" +
		"Assistant (2024-05-01, 10:00:05): two\n" +
		"User (99-99-99): three\n" +
		"Assistant: four"
	got := SegmentAt(input, clock)
	if len(got) != 4 {
		t.Fatalf("Expected 4 turns, got %d", len(got))
	}

	expected := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 0, 5, 0, time.UTC),
		fixedNow,
		fixedNow,
	}
	for i, ts := range expected {
		if !got[i].Timestamp.Equal(ts) {
			t.Errorf("turn %d: expected timestamp %v, got %v", i, ts, got[i].Timestamp)
		}
	}
}

func TestInferGenre(t *testing.T) {
	tests := []struct {
		input string
		want  story.Genre
	}{
		{"A tale of HORROR in the dark.", story.GenreHorror},
		{"cyberpunk alleys and neon", story.GenreCyberpunk},
		{"A fantasy with a sci-fi twist", story.GenreSciFi},
		{"No genre mentioned here.", story.GenreFantasy},
		{"", story.GenreFantasy},
	}

	for _, tt := range tests {
		if got := InferGenre(tt.input); got != tt.want {
			t.Errorf("InferGenre(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestConfig(t *testing.T) {
	cfg := Config("A mystery begins.", false)
	if cfg.Genre != story.GenreMystery {
		t.Errorf("Expected Mystery, got %q", cfg.Genre)
	}
	if cfg.Setting != story.Unknown || cfg.Protagonist != story.Unknown {
		t.Errorf("Expected unknown setting and protagonist, got %+v", cfg)
	}
	if cfg.HasChapters() {
		t.Error("Seeded stories should not have chapters")
	}
	if cfg.EnableImages {
		t.Error("Expected images disabled")
	}
}
