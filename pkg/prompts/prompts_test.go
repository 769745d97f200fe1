package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

func chapteredConfig() story.Config {
	return story.Config{
		Genre:         story.GenreFantasy,
		Setting:       "Enchanted Forest",
		Protagonist:   "Young Mage",
		Length:        "3 Chapters",
		EnableImages:  true,
		InitialPrompt: "Begin.",
	}
}

func TestNewStory(t *testing.T) {
	tests := []struct {
		name     string
		cfg      func() story.Config
		contains []string
		excludes []string
	}{
		{
			name: "chaptered story with images",
			cfg:  chapteredConfig,
			contains: []string{
				"Genre: Fantasy, Setting: Enchanted Forest, Protagonist: Young Mage. Target Story Length: 3 Chapters. Image Generation: Enabled.",
				"Chapter 2 begins.",
				`prefixed with "IMAGE_PROMPT:"`,
				`prefixed with "CHOICES:"`,
				"STORY_ARC_STAGE: [StageName]",
				"Exposition, Rising Action, Climax, Falling Action, Resolution",
				"SYSTEM_COMMAND: ADD_MEMORY: <text>",
				"SYSTEM_COMMAND: REQUEST_RECAP",
				"Memory added by player:",
			},
			excludes: []string{"Do NOT include any 'IMAGE_PROMPT:'"},
		},
		{
			name: "short story without images",
			cfg: func() story.Config {
				c := chapteredConfig()
				c.Length = story.ShortStory
				c.EnableImages = false
				return c
			},
			contains: []string{
				"Image Generation: Disabled.",
				"Do NOT include any 'IMAGE_PROMPT:'",
			},
			excludes: []string{"Chapter 2 begins.", "Structure the narrative"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewStory(tt.cfg())
			for _, s := range tt.contains {
				if !strings.Contains(got, s) {
					t.Errorf("Expected prompt to contain %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(got, s) {
					t.Errorf("Expected prompt not to contain %q", s)
				}
			}
		})
	}
}

func TestSeedStory(t *testing.T) {
	got := SeedStory(false)
	if !strings.Contains(got, "continuing an existing story") {
		t.Error("Expected seed prompt to describe continuation")
	}
	if !strings.Contains(got, "Image Generation: Disabled.") {
		t.Error("Expected images disabled")
	}
	if !strings.Contains(got, ArcStageRule) {
		t.Error("Expected arc stage rule")
	}
	if !strings.Contains(SeedStory(true), `prefixed with "IMAGE_PROMPT:"`) {
		t.Error("Expected image prompt rule when enabled")
	}
}

func TestForConfig(t *testing.T) {
	cfg := chapteredConfig()
	if got := ForConfig(cfg, nil); got != NewStory(cfg) {
		t.Error("Expected new story prompt when an initial prompt is set")
	}

	seeded := story.Config{Genre: story.GenreHorror, Setting: story.Unknown, Protagonist: story.Unknown, Length: story.ShortStory}
	if got := ForConfig(seeded, nil); got != SeedStory(false) {
		t.Error("Expected seed prompt for a seeded story")
	}

	start := story.StoryStartTurn(seeded, "", time.Now())
	if got := ForConfig(seeded, []story.Turn{start}); got != NewStory(seeded) {
		t.Error("Expected new story prompt when a story-start turn exists")
	}
}
