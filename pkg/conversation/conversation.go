// Package conversation decides, for each story operation, what context a
// model session must be seeded with, what single input to send, and what
// history the player sees afterwards.
package conversation

import (
	"errors"
	"time"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

// Op tags the operation a Plan was built for.
type Op int

const (
	OpInitialStart Op = iota
	OpNormalTurn
	OpSystemDirective
	OpRegenerate
	OpResume
	OpContinueFromSeed
)

func (o Op) String() string {
	switch o {
	case OpInitialStart:
		return "initial-start"
	case OpNormalTurn:
		return "normal-turn"
	case OpSystemDirective:
		return "system-directive"
	case OpRegenerate:
		return "regenerate"
	case OpResume:
		return "resume-from-save"
	case OpContinueFromSeed:
		return "continue-from-seed"
	default:
		return "unknown"
	}
}

const (
	// BeginInput is sent when a new story has no opening prompt.
	BeginInput = "Let's begin the story."
	// ContinueInput is sent after a seed story has been replayed.
	ContinueInput = "What happens next based on the story so far?"
)

var (
	ErrNothingToRegenerate = errors.New("no response to regenerate")
	ErrNoPrompt            = errors.New("no prompt found to resend")
)

// Plan is the outcome of reconstruction.
type Plan struct {
	Op Op

	// Replay is the context preceding Input. It seeds a fresh session
	// when NewSession is set.
	Replay []story.Turn

	// Input is sent as the next message. Empty means nothing is sent.
	Input string

	// History is what the player sees once the plan is applied; the
	// response turn is appended to it.
	History []story.Turn

	ResponseSpeaker story.Speaker
	SystemDirective bool // response is an acknowledgement, not narrative
	NewSession      bool
}

// InitialStart plans the first request of a configured story.
func InitialStart(cfg story.Config, now time.Time) Plan {
	p := Plan{
		Op:              OpInitialStart,
		Input:           BeginInput,
		History:         []story.Turn{},
		ResponseSpeaker: story.SpeakerAssistant,
		NewSession:      true,
	}
	if cfg.InitialPrompt != "" {
		p.Input = cfg.InitialPrompt
		p.History = []story.Turn{story.StoryStartTurn(cfg, cfg.InitialPrompt, now)}
	}
	return p
}

// NormalTurn appends the player's input and sends it on the current session.
func NormalTurn(history []story.Turn, text string, now time.Time) Plan {
	user := story.NewTurn(story.SpeakerUser, text, now)
	return Plan{
		Op:              OpNormalTurn,
		Replay:          story.CloneTurns(history),
		Input:           text,
		History:         appendTurn(history, user),
		ResponseSpeaker: story.SpeakerAssistant,
	}
}

// AddMemory records a player memory and sends the matching command.
func AddMemory(history []story.Turn, memory string, now time.Time) Plan {
	t := story.NewTurn(story.SpeakerSystem, story.MemoryPrefix+" "+memory, now)
	t.Kind = story.KindDirective
	t.Directive = story.MemoryCommand(memory)
	return directivePlan(history, t)
}

// RequestRecap sends the recap command.
func RequestRecap(history []story.Turn, now time.Time) Plan {
	cmd := story.RecapCommand()
	t := story.NewTurn(story.SpeakerSystem, cmd, now)
	t.Kind = story.KindDirective
	t.Directive = cmd
	return directivePlan(history, t)
}

func directivePlan(history []story.Turn, t story.Turn) Plan {
	return Plan{
		Op:              OpSystemDirective,
		Replay:          story.CloneTurns(history),
		Input:           t.Directive,
		History:         appendTurn(history, t),
		ResponseSpeaker: story.SpeakerSystem,
		SystemDirective: true,
	}
}

// Regenerate replaces the latest model response. The prompting turn is found
// in this order: the turn right before the response if it is a User turn or a
// directive, then the story's initial prompt when the player has not spoken
// yet, then the nearest earlier User turn.
func Regenerate(history []story.Turn, cfg story.Config) (Plan, error) {
	target := lastResponseIndex(history)
	if target < 0 {
		return Plan{}, ErrNothingToRegenerate
	}

	p := Plan{
		Op:              OpRegenerate,
		History:         story.CloneTurns(history[:target]),
		ResponseSpeaker: story.SpeakerAssistant,
		NewSession:      true,
	}

	prompt := target - 1
	switch {
	case prompt >= 0 && history[prompt].Speaker == story.SpeakerUser:
		p.Input = history[prompt].Text
		p.Replay = story.CloneTurns(history[:prompt])

	case prompt >= 0 && history[prompt].IsDirective():
		p.Input = history[prompt].DirectiveText()
		p.Replay = story.CloneTurns(history[:prompt])
		p.ResponseSpeaker = story.SpeakerSystem
		p.SystemDirective = true

	case cfg.InitialPrompt != "" && countSpeaker(history, story.SpeakerUser) == 0:
		p.Input = cfg.InitialPrompt
		p.Replay = []story.Turn{}
		for _, t := range history {
			if t.IsStoryStart() {
				p.Replay = []story.Turn{t}
				break
			}
		}

	default:
		user := -1
		for i := target - 1; i >= 0; i-- {
			if history[i].Speaker == story.SpeakerUser {
				user = i
				break
			}
		}
		if user < 0 {
			return Plan{}, ErrNoPrompt
		}
		p.Input = history[user].Text
		p.Replay = story.CloneTurns(history[:user])
	}
	return p, nil
}

// Resume reopens a saved story. Nothing is sent until the player acts.
func Resume(saved story.SaveState) Plan {
	history := story.CloneTurns(saved.History)
	for i := range history {
		history[i].IsStreaming = false
	}
	if history == nil {
		history = []story.Turn{}
	}
	return Plan{
		Op:              OpResume,
		Replay:          story.CloneTurns(history),
		History:         history,
		ResponseSpeaker: story.SpeakerAssistant,
		NewSession:      true,
	}
}

// ContinueFromSeed replays segmented seed turns, optionally preceded by a
// seed image turn, and asks the model to carry on.
func ContinueFromSeed(seeds []story.Turn, seedImage string, now time.Time) Plan {
	replay := make([]story.Turn, 0, len(seeds)+1)
	if seedImage != "" {
		at := now
		if len(seeds) > 0 {
			at = seeds[0].Timestamp
		}
		replay = append(replay, story.SeedImageTurn(seedImage, at.Add(-time.Millisecond)))
	}
	replay = append(replay, story.CloneTurns(seeds)...)

	user := story.NewTurn(story.SpeakerUser, ContinueInput, now)
	return Plan{
		Op:              OpContinueFromSeed,
		Replay:          replay,
		Input:           ContinueInput,
		History:         appendTurn(replay, user),
		ResponseSpeaker: story.SpeakerAssistant,
		NewSession:      true,
	}
}

// lastResponseIndex finds the newest Assistant turn, or the newest System turn
// that the model produced and that is not a memory or recap line.
func lastResponseIndex(history []story.Turn) int {
	for i := len(history) - 1; i >= 0; i-- {
		t := history[i]
		switch t.Speaker {
		case story.SpeakerAssistant:
			return i
		case story.SpeakerSystem:
			if t.IsDirective() || t.IsStoryStart() || t.Kind == story.KindAnnouncement || t.IsMemoryOrRecapAck() {
				continue
			}
			return i
		}
	}
	return -1
}

func countSpeaker(history []story.Turn, s story.Speaker) int {
	n := 0
	for _, t := range history {
		if t.Speaker == s {
			n++
		}
	}
	return n
}

func appendTurn(history []story.Turn, t story.Turn) []story.Turn {
	out := make([]story.Turn, 0, len(history)+1)
	out = append(out, story.CloneTurns(history)...)
	return append(out, t)
}
