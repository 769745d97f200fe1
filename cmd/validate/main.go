package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jwebster45206/story-weaver/pkg/seed"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

func main() {
	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s seed <story.txt> | save <save.json>\n", os.Args[0])
		os.Exit(1)
	}

	kind, filename := os.Args[1], os.Args[2]
	v := &Validator{}

	var err error
	switch kind {
	case "seed":
		err = v.validateSeedFile(filename)
	case "save":
		err = v.validateSaveFile(filename)
	default:
		fmt.Fprintf(os.Stderr, "Unknown file kind %q (expected seed or save)\n", kind)
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s file is valid!\n", strings.ToUpper(kind[:1])+kind[1:])
}

// Validator collects problems found in a file.
type Validator struct {
	errors []string
}

func (v *Validator) addError(format string, args ...any) {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
}

func (v *Validator) result(filename string) error {
	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateSeedFile prints the turns a seed file segments into.
func (v *Validator) validateSeedFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	v.errors = nil

	turns := seed.Segment(string(data))
	if len(turns) == 0 {
		v.addError("- seed text has no content")
		return v.result(filename)
	}

	counts := map[story.Speaker]int{}
	for i, t := range turns {
		counts[t.Speaker]++
		fmt.Printf("[%d] %s (%s): %s\n", i+1, t.Speaker, t.Timestamp.Format("2006-01-02 15:04:05"), preview(t.Text, 72))
	}
	cfg := seed.Config(string(data), false)
	fmt.Printf("\n%d turns (%d user, %d assistant, %d system), inferred genre: %s\n",
		len(turns), counts[story.SpeakerUser], counts[story.SpeakerAssistant], counts[story.SpeakerSystem], cfg.Genre)

	if counts[story.SpeakerAssistant] == 0 && counts[story.SpeakerSystem] == 0 {
		v.addError("- seed text has no narration to continue from")
	}
	return v.result(filename)
}

// validateSaveFile strictly decodes a save and checks its turn invariants.
func (v *Validator) validateSaveFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	v.errors = nil

	if !json.Valid(data) {
		return fmt.Errorf("file %s contains invalid JSON", filename)
	}

	var s story.SaveState
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&s); err != nil {
		return fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
	}

	v.validateSave(&s)

	counts := map[story.Speaker]int{}
	for _, t := range s.History {
		counts[t.Speaker]++
	}
	fmt.Printf("%d turns (%d user, %d assistant, %d system), chapter: %q, arc stage: %q, saved at %s\n",
		len(s.History), counts[story.SpeakerUser], counts[story.SpeakerAssistant], counts[story.SpeakerSystem],
		s.CurrentChapter, s.CurrentArcStage, s.SavedAt.Format("2006-01-02 15:04:05"))

	return v.result(filename)
}

func (v *Validator) validateSave(s *story.SaveState) {
	if err := s.Config.Validate(); err != nil {
		v.addError("- config: %v", err)
	}
	if len(s.History) == 0 {
		v.addError("- history is empty")
	}
	if s.CurrentArcStage != "" && s.CurrentArcStage.Index() < 0 {
		v.addError("- unknown arc stage %q", s.CurrentArcStage)
	}
	if !s.Config.HasChapters() && s.CurrentChapter != "" {
		v.addError("- short story has chapter %q", s.CurrentChapter)
	}

	seen := make(map[string]int, len(s.History))
	streaming := 0
	for i, t := range s.History {
		n := i + 1
		switch t.Speaker {
		case story.SpeakerUser, story.SpeakerAssistant, story.SpeakerSystem:
		default:
			v.addError("- turn %d: unknown speaker %q", n, t.Speaker)
		}
		if t.ID == "" {
			v.addError("- turn %d: missing id", n)
		} else if prev, ok := seen[t.ID]; ok {
			v.addError("- turn %d: duplicate id %s (also turn %d)", n, t.ID, prev)
		} else {
			seen[t.ID] = n
		}
		if t.IsStreaming {
			streaming++
		}
		if len(t.Choices) > 0 && t.Speaker != story.SpeakerAssistant {
			v.addError("- turn %d: %s turn carries choices", n, t.Speaker)
		}
		if t.Kind == story.KindDirective && t.DirectiveText() == "" {
			v.addError("- turn %d: directive turn has no command", n)
		}
	}
	if streaming > 1 {
		v.addError("- %d turns are streaming (at most one allowed)", streaming)
	}
}

func preview(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	if len(text) <= n {
		return text
	}
	return text[:n-3] + "..."
}
