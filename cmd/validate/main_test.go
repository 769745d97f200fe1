package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

func validSave() story.SaveState {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	narr := story.NewTurn(story.SpeakerAssistant, "The gate opens.", at)
	narr.Choices = story.NewChoices([]string{"Enter"})
	return story.SaveState{
		History: []story.Turn{story.NewTurn(story.SpeakerUser, "Begin", at), narr},
		Config: story.Config{
			Genre:       story.GenreFantasy,
			Setting:     "Lost Temple",
			Protagonist: "Lone Explorer",
			Length:      "3 Chapters",
		},
		CurrentChapter:  "Chapter 1",
		CurrentArcStage: story.ArcExposition,
		SavedAt:         at,
	}
}

func TestValidateSave(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *story.SaveState)
		want   string
	}{
		{name: "valid", mutate: func(s *story.SaveState) {}},
		{name: "choices on user turn", mutate: func(s *story.SaveState) {
			s.History[0].Choices = story.NewChoices([]string{"x"})
		}, want: "User turn carries choices"},
		{name: "duplicate id", mutate: func(s *story.SaveState) {
			s.History[1].ID = s.History[0].ID
		}, want: "duplicate id"},
		{name: "bad arc stage", mutate: func(s *story.SaveState) {
			s.CurrentArcStage = "Epilogue"
		}, want: "unknown arc stage"},
		{name: "two streaming turns", mutate: func(s *story.SaveState) {
			s.History[0].IsStreaming = true
			s.History[1].IsStreaming = true
		}, want: "2 turns are streaming"},
		{name: "chapter on short story", mutate: func(s *story.SaveState) {
			s.Config.Length = story.ShortStory
		}, want: "short story has chapter"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSave()
			tt.mutate(&s)
			v := &Validator{}
			v.validateSave(&s)

			joined := strings.Join(v.errors, "\n")
			if tt.want == "" {
				if len(v.errors) != 0 {
					t.Errorf("Expected no errors, got %s", joined)
				}
				return
			}
			if !strings.Contains(joined, tt.want) {
				t.Errorf("Expected error containing %q, got %q", tt.want, joined)
			}
		})
	}
}

func TestValidateSaveFile(t *testing.T) {
	dir := t.TempDir()
	data, err := json.Marshal(validSave())
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, data, 0o644); err != nil {
		t.Fatal(err)
	}
	unknown := filepath.Join(dir, "unknown.json")
	if err := os.WriteFile(unknown, []byte(`{"history":[],"extra":1}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := (&Validator{}).validateSaveFile(good); err != nil {
		t.Errorf("Expected valid save, got %v", err)
	}
	if err := (&Validator{}).validateSaveFile(unknown); err == nil {
		t.Error("Expected strict decoding to reject unknown fields")
	}
}

func TestValidateSeedFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "seed.txt")
	if err := os.WriteFile(good, []byte("User: I wake.\nAssistant: The room is dark."), 0o644); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.txt")
	if err := os.WriteFile(empty, []byte("\n\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := (&Validator{}).validateSeedFile(good); err != nil {
		t.Errorf("Expected valid seed, got %v", err)
	}
	if err := (&Validator{}).validateSeedFile(empty); err == nil {
		t.Error("Expected error for empty seed")
	}
}
