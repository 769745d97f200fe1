package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/jwebster45206/story-weaver/internal/logger"
	"github.com/jwebster45206/story-weaver/internal/services"
	"github.com/jwebster45206/story-weaver/pkg/retry"
)

const (
	noteImagesDisabled = "\n(Image generation is disabled for this story.)"
	noteNoPrompt       = "\n(Image generation skipped: No prompt provided.)"
	noteQuota          = "\n(Image generation failed: Quota exceeded.)"
	noteAuth           = "\n(Image generation failed: API key issue.)"
)

// GenerateImage renders prompt for the given turn. The prompt replaces the
// turn's stored prompt. Failures never interrupt the story; they are noted
// on the turn instead.
func (e *Engine) GenerateImage(ctx context.Context, turnID, prompt string) error {
	if !e.image.tryAcquire() {
		return ErrBusy
	}
	defer e.image.release()

	e.mu.Lock()
	if e.mode != ModePlaying || e.cfg == nil {
		e.mu.Unlock()
		return ErrNotPlaying
	}
	i := e.turnIndexLocked(turnID)
	if i < 0 {
		e.mu.Unlock()
		return ErrTurnNotFound
	}
	t := &e.history[i]

	switch {
	case !e.cfg.EnableImages:
		t.ImagePrompt = prompt
		t.Text += noteImagesDisabled
		pending := e.savePointLocked()
		e.mu.Unlock()
		e.persist(ctx, pending)
		e.notify()
		return nil
	case strings.TrimSpace(prompt) == "":
		t.Text += noteNoPrompt
		pending := e.savePointLocked()
		e.mu.Unlock()
		e.persist(ctx, pending)
		e.notify()
		return nil
	}

	t.ImagePrompt = prompt
	e.imageTurn = turnID
	epoch := e.epoch
	gen := e.images
	e.mu.Unlock()
	e.notify()

	url, err := e.renderImage(ctx, gen, prompt)

	e.mu.Lock()
	if e.epoch != epoch {
		e.mu.Unlock()
		return nil
	}
	e.imageTurn = ""
	var pending *savePoint
	// the turn may have been removed by a regenerate meanwhile
	if i = e.turnIndexLocked(turnID); i >= 0 {
		t = &e.history[i]
		switch {
		case err != nil:
			t.Text += imageFailureNote(err, prompt)
		case url == "":
			t.Text += fmt.Sprintf("\n(Image generation failed for prompt: %q)", prompt)
		default:
			t.ImageURL = url
		}
		pending = e.savePointLocked()
	}
	e.mu.Unlock()
	e.persist(ctx, pending)
	e.notify()
	return nil
}

func (e *Engine) renderImage(ctx context.Context, gen services.ImageGenerator, prompt string) (string, error) {
	if gen == nil {
		return "", services.ErrImagesUnsupported
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	url, err := retry.Do(ctx, e.retry, func(ctx context.Context) (string, error) {
		return gen.GenerateImage(ctx, prompt)
	})
	if err != nil {
		logger.WithError(e.logger, err).Error("Image generation failed", "kind", services.Classify(err))
		return "", err
	}
	if url == "" {
		e.logger.Warn("Image generation returned no image", "prompt", prompt)
	}
	return url, nil
}

func imageFailureNote(err error, prompt string) string {
	switch services.Classify(err) {
	case services.KindQuota:
		return noteQuota
	case services.KindAuth:
		return noteAuth
	default:
		return fmt.Sprintf("\n(Image generation failed for prompt: %q)", prompt)
	}
}
