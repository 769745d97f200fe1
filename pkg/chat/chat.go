package chat

import (
	"strings"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

const (
	ChatRoleUser   = "user"      // Player
	ChatRoleAgent  = "assistant" // Narrator, and System turns replayed as narrator context
	ChatRoleSystem = "system"    // System instructions only
)

// ChatMessage is a single role-tagged message replayed into a model session.
type ChatMessage struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// FromTurns converts story turns into session history. User turns keep the
// user role; everything else is replayed on the narrator's side.
func FromTurns(turns []story.Turn) []ChatMessage {
	msgs := make([]ChatMessage, 0, len(turns))
	for _, t := range turns {
		role := ChatRoleAgent
		if t.Speaker == story.SpeakerUser {
			role = ChatRoleUser
		}
		msgs = append(msgs, ChatMessage{Role: role, Content: t.Text})
	}
	return msgs
}

// Collapse merges consecutive messages with the same role, for providers
// that require strictly alternating turns. Empty messages are dropped.
func Collapse(msgs []ChatMessage) []ChatMessage {
	var out []ChatMessage
	for _, m := range msgs {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == m.Role {
			out[n-1].Content += "\n\n" + m.Content
			continue
		}
		out = append(out, m)
	}
	return out
}

// SplitSystem separates leading system messages from the conversation that
// follows them. Multiple system messages are joined with blank lines.
func SplitSystem(msgs []ChatMessage) (string, []ChatMessage) {
	var system []string
	i := 0
	for ; i < len(msgs) && msgs[i].Role == ChatRoleSystem; i++ {
		system = append(system, msgs[i].Content)
	}
	return strings.Join(system, "\n\n"), msgs[i:]
}
