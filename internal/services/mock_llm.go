package services

import (
	"context"
	"strings"
	"sync"

	"github.com/jwebster45206/story-weaver/pkg/chat"
)

// DefaultMockReply is streamed when no scripted reply is queued.
const DefaultMockReply = "The story continues.\nCHOICES: [\"Go on\", \"Look around\"]\nSTORY_ARC_STAGE: Exposition"

// DefaultMockImage is returned by GenerateImage when no func is set.
const DefaultMockImage = "data:image/png;base64,iVBORw0KGgo="

// MockReply is one scripted model reply. Chunks, when set, are streamed in
// order and Text is ignored.
type MockReply struct {
	Text   string
	Chunks []string
	Err    error
}

// MockLLM is a scripted implementation of ModelService and ImageGenerator
// for tests and offline play.
type MockLLM struct {
	StartSessionFunc  func(ctx context.Context, systemPrompt string, history []chat.ChatMessage) error
	SendFunc          func(ctx context.Context, input string) (MockReply, error)
	GenerateImageFunc func(ctx context.Context, prompt string) (string, error)

	// Replies are consumed in order by SendStream.
	Replies []MockReply

	// Track calls for testing
	StartSessionCalls  []StartSessionCall
	SendCalls          []SendCall
	GenerateImageCalls []string

	mu       sync.Mutex // protects all fields above
	sessions int
}

type StartSessionCall struct {
	SystemPrompt string
	History      []chat.ChatMessage
}

type SendCall struct {
	Session int // 1-based, in StartSession order
	Input   string
}

var (
	_ ModelService   = (*MockLLM)(nil)
	_ ImageGenerator = (*MockLLM)(nil)
)

// NewMockLLM creates a mock that answers with the given replies in order.
func NewMockLLM(replies ...MockReply) *MockLLM {
	return &MockLLM{
		Replies:            replies,
		StartSessionCalls:  make([]StartSessionCall, 0),
		SendCalls:          make([]SendCall, 0),
		GenerateImageCalls: make([]string, 0),
	}
}

func (m *MockLLM) Name() string { return "mock" }

// StartSession mocks session creation
func (m *MockLLM) StartSession(ctx context.Context, systemPrompt string, history []chat.ChatMessage) (Session, error) {
	m.mu.Lock()
	m.StartSessionCalls = append(m.StartSessionCalls, StartSessionCall{
		SystemPrompt: systemPrompt,
		History:      append([]chat.ChatMessage(nil), history...),
	})
	fn := m.StartSessionFunc
	m.mu.Unlock()

	// fn runs unlocked so it may block without stalling other calls
	if fn != nil {
		if err := fn(ctx, systemPrompt, history); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	return &mockSession{mock: m, id: m.sessions}, nil
}

// QueueReplies appends scripted replies.
func (m *MockLLM) QueueReplies(replies ...MockReply) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, replies...)
}

// SetStartSessionError sets up the mock to fail every StartSession
func (m *MockLLM) SetStartSessionError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StartSessionFunc = func(ctx context.Context, systemPrompt string, history []chat.ChatMessage) error {
		return err
	}
}

// SetGenerateImageError sets up the mock to fail every GenerateImage
func (m *MockLLM) SetGenerateImageError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GenerateImageFunc = func(ctx context.Context, prompt string) (string, error) {
		return "", err
	}
}

// GetCalls returns a copy of the call tracking data in a thread-safe way
func (m *MockLLM) GetCalls() ([]StartSessionCall, []SendCall, []string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	starts := make([]StartSessionCall, len(m.StartSessionCalls))
	copy(starts, m.StartSessionCalls)

	sends := make([]SendCall, len(m.SendCalls))
	copy(sends, m.SendCalls)

	images := make([]string, len(m.GenerateImageCalls))
	copy(images, m.GenerateImageCalls)

	return starts, sends, images
}

// Reset clears all call tracking and queued replies
func (m *MockLLM) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = nil
	m.StartSessionCalls = make([]StartSessionCall, 0)
	m.SendCalls = make([]SendCall, 0)
	m.GenerateImageCalls = make([]string, 0)
}

// GenerateImage mocks image generation
func (m *MockLLM) GenerateImage(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.GenerateImageCalls = append(m.GenerateImageCalls, prompt)
	fn := m.GenerateImageFunc
	m.mu.Unlock()

	if strings.TrimSpace(prompt) == "" {
		return "", ErrEmptyPrompt
	}
	if fn != nil {
		return fn(ctx, prompt)
	}
	return DefaultMockImage, nil
}

func (m *MockLLM) nextReply(ctx context.Context, session int, input string) (MockReply, error) {
	m.mu.Lock()
	m.SendCalls = append(m.SendCalls, SendCall{Session: session, Input: input})
	fn := m.SendFunc
	var reply MockReply
	queued := len(m.Replies) > 0
	if fn == nil && queued {
		reply = m.Replies[0]
		m.Replies = m.Replies[1:]
	}
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, input)
	}
	if !queued {
		return MockReply{Text: DefaultMockReply}, nil
	}
	return reply, nil
}

type mockSession struct {
	mock *MockLLM
	id   int
}

func (s *mockSession) SendStream(ctx context.Context, input string, onChunk func(string)) (string, error) {
	reply, err := s.mock.nextReply(ctx, s.id, input)
	if err != nil {
		return "", err
	}

	chunks := reply.Chunks
	if chunks == nil && reply.Text != "" {
		chunks = strings.SplitAfter(reply.Text, "\n")
	}

	var sb strings.Builder
	for _, c := range chunks {
		if c == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		sb.WriteString(c)
		if onChunk != nil {
			onChunk(c)
		}
	}
	if reply.Err != nil {
		return "", reply.Err
	}
	return sb.String(), nil
}
