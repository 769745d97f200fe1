package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwebster45206/story-weaver/internal/logger"
	"github.com/jwebster45206/story-weaver/internal/services"
	"github.com/jwebster45206/story-weaver/internal/storage"
	"github.com/jwebster45206/story-weaver/pkg/chat"
	"github.com/jwebster45206/story-weaver/pkg/conversation"
	"github.com/jwebster45206/story-weaver/pkg/prompts"
	"github.com/jwebster45206/story-weaver/pkg/seed"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

// StartNewStory begins a configured story and streams its opening.
func (e *Engine) StartNewStory(ctx context.Context, cfg story.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid story config: %w", err)
	}
	if !e.text.tryAcquire() {
		return ErrBusy
	}
	defer e.text.release()

	plan := conversation.InitialStart(cfg, e.now())

	e.mu.Lock()
	e.resetLocked()
	e.cfg = &cfg
	e.theme = story.ThemeForGenre(cfg.Genre)
	e.stage = story.ArcExposition
	if cfg.HasChapters() {
		e.chapter = "Chapter 1"
	}
	e.mode = ModePlaying
	epoch := e.epoch
	e.mu.Unlock()

	logger.WithStory(e.logger, string(cfg.Genre), e.slot).
		Info("Starting new story", "length", cfg.Length, "images", cfg.EnableImages)
	e.notify()

	return e.run(ctx, epoch, plan)
}

// StartFromSeed segments pasted prose into turns, replays them into a fresh
// session and asks the model to continue.
func (e *Engine) StartFromSeed(ctx context.Context, raw, seedImage string, enableImages bool) error {
	if !e.text.tryAcquire() {
		return ErrBusy
	}
	defer e.text.release()

	seeds := seed.SegmentAt(raw, e.now)

	e.mu.Lock()
	e.resetLocked()
	if len(seeds) == 0 {
		e.failLocked("Could not parse the seed story. Please ensure it has some content.")
		e.mu.Unlock()
		e.notify()
		return ErrEmptySeed
	}

	cfg := seed.Config(raw, enableImages)
	plan := conversation.ContinueFromSeed(seeds, seedImage, e.now())
	e.cfg = &cfg
	e.theme = story.ThemeForGenre(cfg.Genre)
	e.stage = story.ArcExposition
	e.history = story.CloneTurns(plan.Replay)
	e.mode = ModePlaying
	epoch := e.epoch
	e.mu.Unlock()

	logger.WithStory(e.logger, string(cfg.Genre), e.slot).
		Info("Starting seeded story", "turns", len(seeds), "seed_image", seedImage != "")
	e.notify()

	return e.run(ctx, epoch, plan)
}

// Resume restores the saved story and opens a session seeded with its
// history. Nothing is sent until the player acts.
func (e *Engine) Resume(ctx context.Context) error {
	if !e.text.tryAcquire() {
		return ErrBusy
	}
	defer e.text.release()

	saved, err := e.store.Load(ctx, e.slot)
	if err != nil {
		e.mu.Lock()
		e.resetLocked()
		if errors.Is(err, storage.ErrCorruptSave) {
			e.logger.Error("Discarding corrupt save", "slot", e.slot, "error", err)
			if derr := e.store.Delete(ctx, e.slot); derr != nil {
				e.logger.Error("Failed to delete corrupt save", "slot", e.slot, "error", derr)
			}
			e.failLocked("Failed to load saved game. Data might be corrupted.")
		} else {
			e.failLocked("Failed to load saved game: " + err.Error())
		}
		e.mu.Unlock()
		e.notify()
		return err
	}
	if saved == nil {
		e.mu.Lock()
		e.resetLocked()
		e.mode = ModeMainMenu
		e.lastErr = "No saved game found."
		e.mu.Unlock()
		e.notify()
		return ErrNoSave
	}

	plan := conversation.Resume(*saved)
	cfg := saved.Config
	log := logger.WithStory(e.logger, string(cfg.Genre), e.slot)
	stage := saved.CurrentArcStage
	if stage.Index() < 0 {
		stage = story.ArcExposition
	}

	e.mu.Lock()
	e.resetLocked()
	e.cfg = &cfg
	e.history = plan.History
	e.chapter = saved.CurrentChapter
	e.stage = stage
	e.theme = story.ResolveTheme(saved.ThemeName, cfg.Genre)
	epoch := e.epoch
	e.mu.Unlock()

	session, err := e.openSession(ctx, cfg, plan.Replay)

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil
	}
	if err != nil {
		log.Error("Failed to reopen saved story", "error", err)
		e.failLocked("Failed to re-initialize chat session. " + services.SessionErrorMessage(err))
		e.mu.Unlock()
		e.notify()
		return err
	}
	e.session = session
	e.mode = ModePlaying
	e.mu.Unlock()

	log.Info("Resumed saved story", "turns", len(plan.History), "chapter", saved.CurrentChapter)
	e.notify()
	return nil
}

// openSession starts a model session seeded with the system instruction for
// cfg and the replayed turns.
func (e *Engine) openSession(ctx context.Context, cfg story.Config, replay []story.Turn) (services.Session, error) {
	msgs, err := prompts.BuildMessages(cfg, replay)
	if err != nil {
		return nil, fmt.Errorf("failed to build session prompt: %w", err)
	}
	system, history := chat.SplitSystem(msgs)

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	session, err := e.model.StartSession(ctx, system, history)
	if err != nil {
		e.logger.Error("Failed to start model session", "model", e.model.Name(), "error", err)
		return nil, err
	}
	return session, nil
}
