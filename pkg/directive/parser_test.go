package directive

import (
	"io"
	"log/slog"
	"reflect"
	"testing"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestParse(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		narrative    string
		imagePrompt  string
		choices      []string
		foundChoices bool
		chapter      string
		arcStage     story.ArcStage
	}{
		{
			name:         "narrative with choices and arc stage",
			input:        "Hello.\nCHOICES: [\"A\",\"B\"]\nSTORY_ARC_STAGE: Climax",
			narrative:    "Hello.",
			choices:      []string{"A", "B"},
			foundChoices: true,
			arcStage:     story.ArcClimax,
		},
		{
			name:      "unknown arc stage is dropped",
			input:     "STORY_ARC_STAGE: Nonsense",
			narrative: "",
			choices:   []string{},
		},
		{
			name:        "image prompt, last occurrence wins",
			input:       "The forest glows.\nIMAGE_PROMPT: first\nimage_prompt: A dark forest with a glowing portal.",
			narrative:   "The forest glows.",
			imagePrompt: "A dark forest with a glowing portal.",
			choices:     []string{},
		},
		{
			name:         "fenced choices",
			input:        "Go on.\nCHOICES: ```json [\"Enter the portal\", \"Set up camp\"]```",
			narrative:    "Go on.",
			choices:      []string{"Enter the portal", "Set up camp"},
			foundChoices: true,
		},
		{
			name:         "malformed choices are found but empty",
			input:        "Story text.\nCHOICES: [\"unterminated",
			narrative:    "Story text.",
			choices:      []string{},
			foundChoices: true,
		},
		{
			name:         "non-string choices are found but empty",
			input:        "Story text.\nCHOICES: [1, 2]",
			narrative:    "Story text.",
			choices:      []string{},
			foundChoices: true,
		},
		{
			name:         "empty choices directive",
			input:        "Story text.\nCHOICES:",
			narrative:    "Story text.",
			choices:      []string{},
			foundChoices: true,
		},
		{
			name:         "choice strings are trimmed and blanks removed",
			input:        "CHOICES: [\"  Run  \", \"\", \"Hide\"]",
			narrative:    "",
			choices:      []string{"Run", "Hide"},
			foundChoices: true,
		},
		{
			name:         "chapter announcement extracted",
			input:        "Chapter 2\nThe village burned.\n\nSmoke rose.\nCHOICES: [\"Flee\"]",
			narrative:    "The village burned.\nSmoke rose.",
			choices:      []string{"Flee"},
			foundChoices: true,
			chapter:      "Chapter 2",
		},
		{
			name:      "blank lines and whitespace collapse",
			input:     "  \r\n  First line.  \r\n\r\n Second line.\n",
			narrative: "First line.\nSecond line.",
			choices:   []string{},
		},
		{
			name:      "empty input",
			input:     "",
			narrative: "",
			choices:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := ParseWithLogger(tt.input, quietLogger)
			if out.Narrative != tt.narrative {
				t.Errorf("Expected narrative %q, got %q", tt.narrative, out.Narrative)
			}
			if out.ImagePrompt != tt.imagePrompt {
				t.Errorf("Expected image prompt %q, got %q", tt.imagePrompt, out.ImagePrompt)
			}
			if !reflect.DeepEqual(out.Choices, tt.choices) {
				t.Errorf("Expected choices %v, got %v", tt.choices, out.Choices)
			}
			if out.FoundChoices != tt.foundChoices {
				t.Errorf("Expected foundChoices %v, got %v", tt.foundChoices, out.FoundChoices)
			}
			if out.Chapter != tt.chapter {
				t.Errorf("Expected chapter %q, got %q", tt.chapter, out.Chapter)
			}
			if out.ArcStage != tt.arcStage {
				t.Errorf("Expected arc stage %q, got %q", tt.arcStage, out.ArcStage)
			}
		})
	}
}

func TestParse_NeverReturnsNilChoices(t *testing.T) {
	inputs := []string{"", "\n\n", "CHOICES: null", "CHOICES: {}", "IMAGE_PROMPT:", "```"}
	for _, in := range inputs {
		out := ParseWithLogger(in, quietLogger)
		if out.Choices == nil {
			t.Errorf("Parse(%q) returned nil choices", in)
		}
	}
}

func TestParse_Idempotent(t *testing.T) {
	inputs := []string{
		"The rain fell.\nShe waited by the door.",
		"Chapter 3\nA new dawn.\nIMAGE_PROMPT: sunrise\nCHOICES: [\"Wake\"]",
		"Line one.\n\n\nLine two.",
	}
	for _, in := range inputs {
		first := ParseWithLogger(in, quietLogger)
		second := ParseWithLogger(first.Narrative, quietLogger)
		if second.Narrative != first.Narrative {
			t.Errorf("Narrative changed on reparse: %q -> %q", first.Narrative, second.Narrative)
		}
		if second.ImagePrompt != "" || second.FoundChoices || second.HasArcStage() || second.Chapter != "" {
			t.Errorf("Reparse of %q produced directives: %+v", first.Narrative, second)
		}
	}
}
