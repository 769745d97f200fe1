package engine

import (
	"context"
	"strings"

	"github.com/jwebster45206/story-weaver/internal/logger"
	"github.com/jwebster45206/story-weaver/internal/services"
	"github.com/jwebster45206/story-weaver/pkg/choices"
	"github.com/jwebster45206/story-weaver/pkg/conversation"
	"github.com/jwebster45206/story-weaver/pkg/directive"
	"github.com/jwebster45206/story-weaver/pkg/retry"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

// Submit sends the player's input as the next turn.
func (e *Engine) Submit(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyInput
	}
	return e.playTurn(ctx, func(history []story.Turn) conversation.Plan {
		return conversation.NormalTurn(history, text, e.now())
	})
}

// AddMemory asks the narrator to remember a player-supplied fact.
func (e *Engine) AddMemory(ctx context.Context, memory string) error {
	memory = strings.TrimSpace(memory)
	if memory == "" {
		return ErrEmptyInput
	}
	return e.playTurn(ctx, func(history []story.Turn) conversation.Plan {
		return conversation.AddMemory(history, memory, e.now())
	})
}

// RequestRecap asks the narrator to summarize the story so far.
func (e *Engine) RequestRecap(ctx context.Context) error {
	return e.playTurn(ctx, func(history []story.Turn) conversation.Plan {
		return conversation.RequestRecap(history, e.now())
	})
}

// playTurn runs a plan on the active session.
func (e *Engine) playTurn(ctx context.Context, build func([]story.Turn) conversation.Plan) error {
	if !e.text.tryAcquire() {
		return ErrBusy
	}
	defer e.text.release()

	e.mu.Lock()
	if e.mode != ModePlaying || e.session == nil || e.cfg == nil {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	plan := build(e.history)
	epoch := e.epoch
	e.mu.Unlock()

	return e.run(ctx, epoch, plan)
}

// Regenerate discards the latest model response and asks for a new one in a
// fresh session seeded with the history that preceded its prompt. The
// history is untouched until that session has opened.
func (e *Engine) Regenerate(ctx context.Context) error {
	if !e.text.tryAcquire() {
		return ErrBusy
	}
	defer e.text.release()

	e.mu.Lock()
	if e.mode != ModePlaying || e.session == nil || e.cfg == nil {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	plan, err := conversation.Regenerate(e.history, *e.cfg)
	if err != nil {
		e.mu.Unlock()
		e.logger.Warn("Regenerate skipped", "error", err)
		return err
	}
	epoch := e.epoch
	e.mu.Unlock()

	e.logger.Info("Regenerating last response", "replay", len(plan.Replay), "directive", plan.SystemDirective)
	return e.run(ctx, epoch, plan)
}

// run applies a plan: it opens a fresh session when the plan asks for one,
// streams the reply into a new in-progress turn and finalizes it. A
// regenerate plan replaces the history only once its session is open, so a
// failed attempt leaves both the history and the save untouched.
func (e *Engine) run(ctx context.Context, epoch uint64, plan conversation.Plan) error {
	regenerate := plan.Op == conversation.OpRegenerate

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil
	}
	cfg := *e.cfg
	var save *savePoint
	if !regenerate {
		e.history = plan.History
		save = e.savePointLocked()
	}
	e.mu.Unlock()
	if !regenerate {
		e.persist(ctx, save)
		e.notify()
	}

	if plan.NewSession {
		session, err := e.openSession(ctx, cfg, plan.Replay)
		e.mu.Lock()
		if e.epoch != epoch {
			e.mu.Unlock()
			return nil
		}
		if err != nil {
			if regenerate {
				e.failLocked("Failed to re-initialize chat for regeneration.")
			} else {
				e.failLocked("Failed to initialize chat. " + services.SessionErrorMessage(err))
			}
			e.mu.Unlock()
			e.notify()
			return err
		}
		e.session = session
		if regenerate {
			e.history = refreshTurns(plan.History, e.history)
			save = e.savePointLocked()
		}
		e.mu.Unlock()
		if regenerate {
			e.persist(ctx, save)
			e.notify()
		}
	}

	if plan.Input == "" {
		return nil
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil
	}
	session := e.session
	pending := story.NewTurn(plan.ResponseSpeaker, "", e.now())
	pending.IsStreaming = true
	if plan.SystemDirective {
		pending.Kind = story.KindAcknowledgement
	}
	id := pending.ID
	e.history = append(e.history, pending)
	e.mu.Unlock()
	e.notify()

	sendCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	raw, err := retry.Do(sendCtx, e.retry, func(ctx context.Context) (string, error) {
		e.setStreamText(epoch, id, "")
		return session.SendStream(ctx, plan.Input, func(chunk string) {
			e.appendChunk(epoch, id, chunk)
		})
	})
	if err != nil {
		e.streamFailed(ctx, epoch, id, err)
		return err
	}

	e.finalize(sendCtx, epoch, id, plan, session, cfg, raw)
	return nil
}

func (e *Engine) setStreamText(epoch uint64, id, text string) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	if i := e.turnIndexLocked(id); i >= 0 {
		e.history[i].Text = text
	}
	e.mu.Unlock()
	e.notify()
}

func (e *Engine) appendChunk(epoch uint64, id, chunk string) {
	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	if i := e.turnIndexLocked(id); i >= 0 {
		e.history[i].Text += chunk
	}
	e.mu.Unlock()
	e.notify()
}

// streamFailed records a failed request on the in-progress turn. Auth, quota
// and server failures end the session.
func (e *Engine) streamFailed(ctx context.Context, epoch uint64, id string, err error) {
	kind := services.Classify(err)
	msg := services.StoryErrorMessage(err)
	logger.WithError(e.logger, err).Error("Story request failed", "kind", kind)

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	if i := e.turnIndexLocked(id); i >= 0 {
		e.history[i].IsStreaming = false
		e.history[i].Text += "\n\n[Error: " + msg + "]"
	}
	e.lastErr = msg
	var pending *savePoint
	if kind.Fatal() {
		e.mode = ModeError
	} else {
		pending = e.savePointLocked()
	}
	e.mu.Unlock()
	e.persist(ctx, pending)
	e.notify()
}

// finalize parses the completed reply into the in-progress turn.
func (e *Engine) finalize(ctx context.Context, epoch uint64, id string, plan conversation.Plan, session services.Session, cfg story.Config, raw string) {
	parsed := directive.ParseWithLogger(raw, e.logger)

	text := parsed.Narrative
	var offered []string
	if plan.SystemDirective {
		if text == "" {
			text = strings.TrimSpace(raw)
		}
	} else {
		req := func(ctx context.Context, prompt string) (string, error) {
			return retry.Do(ctx, e.retry, func(ctx context.Context) (string, error) {
				return session.SendStream(ctx, prompt, nil)
			})
		}
		res := choices.Complete(ctx, raw, parsed, req, e.logger)
		text = res.Narrative
		offered = res.Choices
	}

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return
	}
	i := e.turnIndexLocked(id)
	if i < 0 {
		e.mu.Unlock()
		return
	}
	t := &e.history[i]
	t.IsStreaming = false
	t.Text = text
	t.Choices = story.NewChoices(offered)
	if cfg.EnableImages && !plan.SystemDirective {
		t.ImagePrompt = parsed.ImagePrompt
	}
	if !plan.SystemDirective && parsed.Chapter != "" {
		e.chapter = parsed.Chapter
	}
	if parsed.HasArcStage() {
		e.stage = parsed.ArcStage
	}
	e.lastErr = ""
	e.logger.Debug("Turn finalized", "speaker", t.Speaker, "choices", len(offered), "chapter", e.chapter, "stage", e.stage)
	pending := e.savePointLocked()
	e.mu.Unlock()
	e.persist(ctx, pending)
	e.notify()
}

// refreshTurns returns kept with each turn replaced by its current version,
// so image results that landed while a session was opening survive.
func refreshTurns(kept, current []story.Turn) []story.Turn {
	byID := make(map[string]int, len(current))
	for i, t := range current {
		byID[t.ID] = i
	}
	out := story.CloneTurns(kept)
	for i := range out {
		if j, ok := byID[out[i].ID]; ok {
			out[i] = story.CloneTurns(current[j : j+1])[0]
		}
	}
	return out
}
