package services

import (
	"context"

	"github.com/jwebster45206/story-weaver/pkg/chat"
)

// ModelService opens conversation sessions with a hosted language model.
type ModelService interface {
	// StartSession opens a fresh session seeded with a system instruction
	// and prior history. Sessions are never reseeded in place.
	StartSession(ctx context.Context, systemPrompt string, history []chat.ChatMessage) (Session, error)

	// Name identifies the provider and model for logging.
	Name() string
}

// Session is one conversation with the model.
type Session interface {
	// SendStream sends input as the next user message and streams the reply.
	// onChunk receives each fragment as it arrives; the full reply is
	// returned once the stream completes. On error the session history is
	// left as it was before the call.
	SendStream(ctx context.Context, input string, onChunk func(string)) (string, error)
}

// ImageGenerator renders a prompt to a single image.
type ImageGenerator interface {
	// GenerateImage returns a data URI or URL. An empty result with a nil
	// error means the provider produced no image.
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// sessionHistory is the shared bookkeeping for providers whose APIs are
// stateless: the session replays its own history on every request.
type sessionHistory struct {
	system   string
	messages []chat.ChatMessage
}

func newSessionHistory(system string, history []chat.ChatMessage) sessionHistory {
	msgs := make([]chat.ChatMessage, 0, len(history))
	for _, m := range history {
		if m.Role == chat.ChatRoleSystem {
			continue
		}
		msgs = append(msgs, m)
	}
	return sessionHistory{system: system, messages: msgs}
}

// withInput returns the history plus a pending user message, without
// recording it.
func (h *sessionHistory) withInput(input string) []chat.ChatMessage {
	out := make([]chat.ChatMessage, 0, len(h.messages)+1)
	out = append(out, h.messages...)
	return append(out, chat.ChatMessage{Role: chat.ChatRoleUser, Content: input})
}

// commit records a completed exchange.
func (h *sessionHistory) commit(input, reply string) {
	h.messages = append(h.messages,
		chat.ChatMessage{Role: chat.ChatRoleUser, Content: input},
		chat.ChatMessage{Role: chat.ChatRoleAgent, Content: reply},
	)
}
