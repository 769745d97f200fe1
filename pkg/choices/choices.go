// Package choices guarantees that every finalized story reply offers the
// player at least one next action.
package choices

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jwebster45206/story-weaver/pkg/directive"
)

const (
	// SupplementaryPrompt asks the model for a choices directive only.
	SupplementaryPrompt = "You previously provided the story content. Based on that, please now provide 2-4 choices for the player in the format: CHOICES: [\"Choice 1\", \"Choice 2\"]. Only provide the choices part."

	ContinueChoice    = "Continue the story."
	SeeWhatHappens    = "See what happens next."
	InvestigateChoice = "Investigate the silence."

	StuckNarrative   = "The story seems to pause, waiting for your input, or perhaps contemplating its next move."
	SilenceNarrative = "An unexpected silence hangs in the air. What will you do?"
)

// Requester issues one supplementary model request. Callers wrap it with retry.
type Requester func(ctx context.Context, prompt string) (string, error)

// Result is the finalized choice set for one reply.
type Result struct {
	Choices           []string // never empty
	Narrative         string
	NarrativeReplaced bool // Narrative is a synthesized placeholder
	Supplemented      bool // Choices came from the supplementary request
}

// Complete applies the choice-completion policy to a parsed reply. At most one
// supplementary request is made, and only when the reply has narrative but no
// CHOICES: line at all. A nil req skips that step.
func Complete(ctx context.Context, raw string, parsed directive.Output, req Requester, logger *slog.Logger) Result {
	if logger == nil {
		logger = slog.Default()
	}
	res := Result{Narrative: parsed.Narrative}

	if len(parsed.Choices) > 0 {
		res.Choices = append([]string(nil), parsed.Choices...)
		return res
	}

	if !parsed.FoundChoices && strings.TrimSpace(parsed.Narrative) != "" && req != nil {
		logger.Info("Reply lacked choices, requesting them separately")
		reply, err := req(ctx, SupplementaryPrompt)
		if err != nil {
			logger.Warn("Supplementary choices request failed", "error", err)
		} else if extra := directive.ParseWithLogger(reply, logger); len(extra.Choices) > 0 {
			res.Choices = extra.Choices
			res.Supplemented = true
			return res
		} else {
			logger.Info("Supplementary request yielded no choices", "text", extra.Narrative)
		}
	}

	trimmedRaw := strings.TrimSpace(raw)
	switch {
	case strings.TrimSpace(parsed.Narrative) != "" || strings.TrimSpace(parsed.ImagePrompt) != "":
		res.Choices = []string{ContinueChoice}
	case trimmedRaw == "":
		res.Narrative = StuckNarrative
		res.NarrativeReplaced = true
		res.Choices = []string{InvestigateChoice}
	case !parsed.FoundChoices:
		res.Choices = []string{SeeWhatHappens}
	default:
		res.Narrative = SilenceNarrative
		res.NarrativeReplaced = true
		res.Choices = []string{InvestigateChoice}
	}
	return res
}
