package prompts

import (
	"fmt"

	"github.com/jwebster45206/story-weaver/pkg/chat"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

// Builder assembles the messages that seed a model session using a fluent
// interface: the system instruction first, then the replayed history.
type Builder struct {
	cfg      *story.Config
	history  []story.Turn
	messages []chat.ChatMessage
}

// New creates an empty builder.
func New() *Builder {
	return &Builder{
		messages: make([]chat.ChatMessage, 0),
	}
}

// WithConfig sets the story configuration.
func (b *Builder) WithConfig(cfg story.Config) *Builder {
	b.cfg = &cfg
	return b
}

// WithHistory sets the turns to replay.
func (b *Builder) WithHistory(turns []story.Turn) *Builder {
	b.history = turns
	return b
}

// Build returns the system message followed by the history messages.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if b.cfg == nil {
		return nil, fmt.Errorf("story config is required")
	}

	b.messages = make([]chat.ChatMessage, 0, len(b.history)+1)

	// 1. System instruction
	b.messages = append(b.messages, chat.ChatMessage{
		Role:    chat.ChatRoleSystem,
		Content: ForConfig(*b.cfg, b.history),
	})

	// 2. Replayed history
	b.messages = append(b.messages, chat.FromTurns(b.history)...)

	return b.messages, nil
}

// BuildMessages seeds a session for cfg with the replayed history.
func BuildMessages(cfg story.Config, history []story.Turn) ([]chat.ChatMessage, error) {
	return New().
		WithConfig(cfg).
		WithHistory(history).
		Build()
}
