// Package engine is the story controller. It owns the turn history, the
// active model session and the save slot, and serializes text and image
// requests through single-slot gates.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jwebster45206/story-weaver/internal/services"
	"github.com/jwebster45206/story-weaver/internal/storage"
	"github.com/jwebster45206/story-weaver/pkg/retry"
	"github.com/jwebster45206/story-weaver/pkg/story"
	"github.com/jwebster45206/story-weaver/pkg/transcript"
)

// Mode is the top-level application state.
type Mode int

const (
	ModeMainMenu Mode = iota
	ModePlaying
	ModeError
)

func (m Mode) String() string {
	switch m {
	case ModePlaying:
		return "playing"
	case ModeError:
		return "error"
	default:
		return "main-menu"
	}
}

var (
	// ErrBusy is returned when a request of the same class is in flight.
	ErrBusy = errors.New("another request is already in progress")
	// ErrNotPlaying is returned by turn operations when no story is active.
	ErrNotPlaying = errors.New("chat session is not active")
	// ErrEmptySeed is returned when seed text yields no turns.
	ErrEmptySeed = errors.New("could not parse the seed story. Please ensure it has some content")
	// ErrNoSave is returned by Resume when the slot is empty.
	ErrNoSave = errors.New("no saved game found")
	// ErrEmptyInput is returned for blank player input.
	ErrEmptyInput = errors.New("input is empty")
	// ErrTurnNotFound is returned when an image is requested for an unknown turn.
	ErrTurnNotFound = errors.New("turn not found")
	// ErrNothingToExport is returned by Export before a story has begun.
	ErrNothingToExport = errors.New("no story to export")
)

// Snapshot is a copy of the engine state for rendering.
type Snapshot struct {
	Mode      Mode
	Config    story.Config
	HasStory  bool
	History   []story.Turn
	Chapter   string
	ArcStage  story.ArcStage
	Theme     string
	Err       string
	Busy      bool
	ImageBusy bool
	// ImageTurnID is the turn whose image is being rendered.
	ImageTurnID     string
	ImagesAvailable bool
}

// Options configures an Engine. Images may be nil.
type Options struct {
	Model          services.ModelService
	Images         services.ImageGenerator
	Store          storage.SaveStore
	Slot           string
	Retry          retry.Policy
	RequestTimeout time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
	// OnUpdate is called after every state change, outside the state lock.
	OnUpdate func(Snapshot)
}

// gate admits one holder at a time and never queues.
type gate struct {
	held atomic.Bool
}

func (g *gate) tryAcquire() bool { return g.held.CompareAndSwap(false, true) }
func (g *gate) release()         { g.held.Store(false) }
func (g *gate) busy() bool       { return g.held.Load() }

type Engine struct {
	model    services.ModelService
	images   services.ImageGenerator
	store    storage.SaveStore
	slot     string
	retry    retry.Policy
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
	onUpdate func(Snapshot)

	text  gate
	image gate

	mu        sync.Mutex // protects all fields below
	mode      Mode
	cfg       *story.Config
	history   []story.Turn
	session   services.Session
	chapter   string
	stage     story.ArcStage
	theme     string
	lastErr   string
	imageTurn string
	// epoch changes on every reset so that late results of an abandoned
	// story are discarded.
	epoch uint64
	// saveSeq orders save points; clearedEpoch is the first epoch whose
	// save points may still be written after a Reset deleted the slot.
	saveSeq      uint64
	clearedEpoch uint64

	saveMu   sync.Mutex // serializes store writes; taken before mu, never inside it
	savedSeq uint64
}

// savePoint is a save built under the state lock and written after it.
type savePoint struct {
	state *story.SaveState
	seq   uint64
	epoch uint64
}

func New(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	slot := opts.Slot
	if slot == "" {
		slot = "default"
	}
	policy := opts.Retry
	if policy.Logger == nil {
		policy.Logger = logger
	}
	return &Engine{
		model:    opts.Model,
		images:   opts.Images,
		store:    opts.Store,
		slot:     slot,
		retry:    policy,
		timeout:  opts.RequestTimeout,
		logger:   logger.With("component", "engine"),
		now:      now,
		onUpdate: opts.OnUpdate,
		theme:    story.ThemeDefault,
	}
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	s := Snapshot{
		Mode:            e.mode,
		HasStory:        e.cfg != nil,
		History:         story.CloneTurns(e.history),
		Chapter:         e.chapter,
		ArcStage:        e.stage,
		Theme:           e.theme,
		Err:             e.lastErr,
		Busy:            e.text.busy(),
		ImageBusy:       e.image.busy(),
		ImageTurnID:     e.imageTurn,
		ImagesAvailable: e.images != nil,
	}
	if e.cfg != nil {
		s.Config = *e.cfg
	}
	return s
}

func (e *Engine) notify() {
	if e.onUpdate == nil {
		return
	}
	e.onUpdate(e.Snapshot())
}

// HasSave reports whether the save slot holds a story.
func (e *Engine) HasSave(ctx context.Context) (bool, error) {
	return e.store.Exists(ctx, e.slot)
}

// Export renders the transcript of the current story.
func (e *Engine) Export() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cfg == nil || len(e.history) == 0 {
		return "", ErrNothingToExport
	}
	return transcript.Export(*e.cfg, e.history, e.chapter, e.stage, time.Local), nil
}

// ExportFileName names an export of the current story.
func (e *Engine) ExportFileName() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	genre := story.Genre("Story")
	if e.cfg != nil {
		genre = e.cfg.Genre
	}
	return transcript.FileName(genre, e.now().UTC())
}

// BackToMenu abandons the current story, keeping its save.
func (e *Engine) BackToMenu() {
	e.mu.Lock()
	e.resetLocked()
	e.mode = ModeMainMenu
	e.mu.Unlock()
	e.notify()
}

// Reset abandons the current story and optionally deletes its save.
func (e *Engine) Reset(ctx context.Context, clearSave bool) error {
	e.mu.Lock()
	e.resetLocked()
	e.mode = ModeMainMenu
	e.mu.Unlock()

	var err error
	if clearSave {
		e.mu.Lock()
		e.clearedEpoch = e.epoch
		e.mu.Unlock()

		e.saveMu.Lock()
		err = e.store.Delete(ctx, e.slot)
		e.saveMu.Unlock()
		if err != nil {
			e.logger.Error("Failed to delete save", "slot", e.slot, "error", err)
		}
	}
	e.notify()
	return err
}

func (e *Engine) resetLocked() {
	e.cfg = nil
	e.history = nil
	e.session = nil
	e.chapter = ""
	e.stage = ""
	e.theme = story.ThemeDefault
	e.lastErr = ""
	e.imageTurn = ""
	e.epoch++
}

// failLocked enters Error mode with a player-facing message.
func (e *Engine) failLocked(msg string) {
	e.mode = ModeError
	e.lastErr = msg
}

// savePointLocked captures the story for saving while it is being played.
// It returns nil when there is nothing to save.
func (e *Engine) savePointLocked() *savePoint {
	if e.mode != ModePlaying || e.cfg == nil || len(e.history) == 0 {
		return nil
	}
	e.saveSeq++
	return &savePoint{
		state: &story.SaveState{
			History:         story.CloneTurns(e.history),
			Config:          *e.cfg,
			CurrentChapter:  e.chapter,
			CurrentArcStage: e.stage,
			ThemeName:       e.theme,
			SavedAt:         e.now(),
		},
		seq:   e.saveSeq,
		epoch: e.epoch,
	}
}

// persist writes a save point unless a newer one has been written or the
// slot was cleared after it was taken. Save failures are logged and never
// interrupt play. Must not be called with mu held.
func (e *Engine) persist(ctx context.Context, p *savePoint) {
	if p == nil {
		return
	}
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	e.mu.Lock()
	cleared := p.epoch < e.clearedEpoch
	e.mu.Unlock()
	if cleared || p.seq <= e.savedSeq {
		return
	}
	// saves ignore request cancellation
	if err := e.store.Save(context.WithoutCancel(ctx), e.slot, p.state); err != nil {
		e.logger.Error("Failed to save story", "slot", e.slot, "error", err)
		return
	}
	e.savedSeq = p.seq
}

func (e *Engine) turnIndexLocked(id string) int {
	for i := range e.history {
		if e.history[i].ID == id {
			return i
		}
	}
	return -1
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
