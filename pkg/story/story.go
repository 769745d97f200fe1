package story

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Speaker identifies who produced a turn.
type Speaker string

const (
	SpeakerUser      Speaker = "User"
	SpeakerAssistant Speaker = "Assistant"
	SpeakerSystem    Speaker = "System" // out-of-band directives and acknowledgements
)

// TurnKind refines System turns. Narrative turns leave it empty.
type TurnKind string

const (
	KindNarrative       TurnKind = ""
	KindDirective       TurnKind = "directive"       // carries a command sent to the model
	KindAcknowledgement TurnKind = "acknowledgement" // model reply to a directive
	KindAnnouncement    TurnKind = "announcement"    // story started, seed image
)

// Command strings understood by the system instructions.
const (
	CommandPrefix         = "SYSTEM_COMMAND:"
	AddMemoryDirective    = "ADD_MEMORY:"
	RequestRecapDirective = "REQUEST_RECAP"
	MemoryPrefix          = "Memory added by player:"

	storyStartPrefix = "Starting a new"
	seedImageText    = "Initial image provided for the story."
)

// Choice is one offered next action.
type Choice struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// NewChoices assigns fresh IDs to a list of choice labels.
func NewChoices(labels []string) []Choice {
	if len(labels) == 0 {
		return nil
	}
	out := make([]Choice, 0, len(labels))
	for _, l := range labels {
		out = append(out, Choice{ID: uuid.NewString(), Text: l})
	}
	return out
}

// Turn is one attributed utterance in the conversation log.
type Turn struct {
	ID          string    `json:"id"`
	Speaker     Speaker   `json:"speaker"`
	Kind        TurnKind  `json:"kind,omitempty"`
	Text        string    `json:"text"`
	Directive   string    `json:"directive,omitempty"`    // raw command for directive turns
	ImagePrompt string    `json:"image_prompt,omitempty"` // suggested by the model or edited by the user
	ImageURL    string    `json:"image_url,omitempty"`    // data URI or remote URL
	Choices     []Choice  `json:"choices,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	IsStreaming bool      `json:"-"`
}

// NewTurn creates a turn with a fresh ID.
func NewTurn(speaker Speaker, text string, at time.Time) Turn {
	return Turn{
		ID:        uuid.NewString(),
		Speaker:   speaker,
		Text:      text,
		Timestamp: at,
	}
}

// IsDirective reports whether the turn carries a system command.
func (t Turn) IsDirective() bool {
	if t.Speaker != SpeakerSystem {
		return false
	}
	return t.Kind == KindDirective || strings.HasPrefix(t.Text, CommandPrefix)
}

// IsStoryStart reports whether the turn is the "story started" announcement.
func (t Turn) IsStoryStart() bool {
	return t.Speaker == SpeakerSystem && strings.HasPrefix(t.Text, storyStartPrefix)
}

// IsMemoryOrRecapAck reports whether a System turn is a memory line or an
// acknowledgement of a memory or recap command.
func (t Turn) IsMemoryOrRecapAck() bool {
	return strings.HasPrefix(t.Text, MemoryPrefix) ||
		strings.Contains(t.Text, "Memory noted") ||
		strings.Contains(t.Text, "Recap of the story so far:")
}

// DirectiveText returns the command to resend for a directive turn.
func (t Turn) DirectiveText() string {
	if t.Directive != "" {
		return t.Directive
	}
	return t.Text
}

// StoryStartTurn builds the announcement recorded when a configured story begins.
func StoryStartTurn(cfg Config, prompt string, at time.Time) Turn {
	t := NewTurn(SpeakerSystem, fmt.Sprintf(
		"%s %s story (%s, Image Generation: %s) in %s with a %s. Initial prompt: \"%s\"",
		storyStartPrefix, cfg.Genre, cfg.Length, enabledLabel(cfg.EnableImages), cfg.Setting, cfg.Protagonist, prompt,
	), at)
	t.Kind = KindAnnouncement
	return t
}

// SeedImageTurn builds the System turn that carries a seed story's image.
func SeedImageTurn(imageURL string, at time.Time) Turn {
	t := NewTurn(SpeakerSystem, seedImageText, at)
	t.Kind = KindAnnouncement
	t.ImageURL = imageURL
	return t
}

// MemoryCommand formats the command that adds a player memory.
func MemoryCommand(memory string) string {
	return CommandPrefix + " " + AddMemoryDirective + " " + memory
}

// RecapCommand formats the command that requests a recap.
func RecapCommand() string {
	return CommandPrefix + " " + RequestRecapDirective
}

func enabledLabel(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}

// CloneTurns copies a turn list, including each turn's choices.
func CloneTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	for i, t := range turns {
		if t.Choices != nil {
			t.Choices = append([]Choice(nil), t.Choices...)
		}
		out[i] = t
	}
	return out
}

// ArcStage is one of the fixed narrative-structure labels.
type ArcStage string

const (
	ArcExposition    ArcStage = "Exposition"
	ArcRisingAction  ArcStage = "Rising Action"
	ArcClimax        ArcStage = "Climax"
	ArcFallingAction ArcStage = "Falling Action"
	ArcResolution    ArcStage = "Resolution"
)

// ArcStages lists the stages in story order.
var ArcStages = []ArcStage{ArcExposition, ArcRisingAction, ArcClimax, ArcFallingAction, ArcResolution}

// ParseArcStage accepts only an exact stage name.
func ParseArcStage(s string) (ArcStage, bool) {
	for _, st := range ArcStages {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Index returns the stage's position in ArcStages, or -1.
func (a ArcStage) Index() int {
	for i, st := range ArcStages {
		if st == a {
			return i
		}
	}
	return -1
}

// SaveState is the persisted snapshot of a story in progress.
type SaveState struct {
	History         []Turn    `json:"story_history"`
	Config          Config    `json:"story_config"`
	CurrentChapter  string    `json:"current_chapter,omitempty"`
	CurrentArcStage ArcStage  `json:"current_arc_stage,omitempty"`
	ThemeName       string    `json:"theme_name"`
	SavedAt         time.Time `json:"saved_at"`
}
