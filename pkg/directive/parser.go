// Package directive splits model replies into narrative prose and the
// prefix-tagged metadata lines embedded in them.
//
// The grammar is a tolerant line scanner:
//
//	IMAGE_PROMPT: <free text>
//	CHOICES: ["choice 1", "choice 2"]   (JSON array of strings, optionally fenced)
//	STORY_ARC_STAGE: <Exposition|Rising Action|Climax|Falling Action|Resolution>
//
// Any other line is narrative. Malformed directives never produce errors.
package directive

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

const (
	ImagePromptPrefix = "IMAGE_PROMPT:"
	ChoicesPrefix     = "CHOICES:"
	ArcStagePrefix    = "STORY_ARC_STAGE:"
)

var (
	lineSplit  = regexp.MustCompile(`\r?\n`)
	fenceRegex = regexp.MustCompile("(?s)^```(\\w*)?\\s*\\n?(.*?)\\n?\\s*```$")
)

// Output is the structured result of parsing one model reply.
type Output struct {
	Narrative    string
	ImagePrompt  string
	Choices      []string // never nil
	FoundChoices bool     // a CHOICES: line was present, even if unusable
	Chapter      string   // e.g. "Chapter 2"
	ArcStage     story.ArcStage
}

// HasArcStage reports whether a valid arc stage was reported.
func (o Output) HasArcStage() bool {
	return o.ArcStage != ""
}

// Parse parses raw model output using the default logger.
func Parse(raw string) Output {
	return ParseWithLogger(raw, nil)
}

// ParseWithLogger parses raw model output, logging malformed directives.
func ParseWithLogger(raw string, logger *slog.Logger) Output {
	if logger == nil {
		logger = slog.Default()
	}

	out := Output{Choices: []string{}}
	var narrative strings.Builder

	for _, line := range nonEmptyTrimmedLines(raw) {
		if rest, ok := cutPrefixFold(line, ImagePromptPrefix); ok {
			out.ImagePrompt = strings.TrimSpace(rest)
			continue
		}
		if rest, ok := cutPrefixFold(line, ChoicesPrefix); ok {
			out.FoundChoices = true
			if choices, ok := parseChoices(strings.TrimSpace(rest), logger); ok {
				out.Choices = choices
			}
			continue
		}
		if rest, ok := cutPrefixFold(line, ArcStagePrefix); ok {
			value := strings.TrimSpace(rest)
			if stage, ok := story.ParseArcStage(value); ok {
				out.ArcStage = stage
			} else {
				logger.Warn("Received unknown story arc stage", "stage", value)
			}
			continue
		}
		narrative.WriteString(line)
		narrative.WriteString("\n")
	}

	text := strings.TrimSpace(narrative.String())
	if text != "" {
		text, out.Chapter = ExtractChapter(text)
	}
	out.Narrative = strings.TrimSpace(text)
	return out
}

func parseChoices(value string, logger *slog.Logger) ([]string, bool) {
	if value == "" {
		logger.Warn("CHOICES: prefix found but no JSON content followed")
		return nil, false
	}
	if m := fenceRegex.FindStringSubmatch(value); m != nil && m[2] != "" {
		value = strings.TrimSpace(m[2])
	}

	var raw []any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		logger.Error("Failed to parse choices JSON", "error", err, "input", value)
		return nil, false
	}

	choices := make([]string, 0, len(raw))
	for _, c := range raw {
		s, ok := c.(string)
		if !ok {
			logger.Error("Parsed choices are not an array of strings", "input", value)
			return nil, false
		}
		if s = strings.TrimSpace(s); s != "" {
			choices = append(choices, s)
		}
	}
	return choices, true
}

func nonEmptyTrimmedLines(text string) []string {
	var lines []string
	for _, l := range lineSplit.Split(text, -1) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// cutPrefixFold is strings.CutPrefix with ASCII case folding on the prefix.
func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
