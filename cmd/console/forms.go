package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jwebster45206/story-weaver/pkg/story"
)

type menuItem int

const (
	menuNewStory menuItem = iota
	menuSeed
	menuResume
	menuQuit
)

func (i menuItem) label() string {
	switch i {
	case menuNewStory:
		return "Start a new story"
	case menuSeed:
		return "Continue from seed text"
	case menuResume:
		return "Resume saved story"
	default:
		return "Quit"
	}
}

func menuItems(hasSave bool) []menuItem {
	items := []menuItem{menuNewStory, menuSeed}
	if hasSave {
		items = append(items, menuResume)
	}
	return append(items, menuQuit)
}

// New story form fields, in tab order.
const (
	fieldGenre = iota
	fieldSetting
	fieldProtagonist
	fieldLength
	fieldImages
	fieldOpening
	fieldCount
)

type newStoryForm struct {
	field       int
	genre       int
	setting     int
	protagonist int
	length      int
	images      bool
	opening     textinput.Model
}

func newNewStoryForm() newStoryForm {
	ti := textinput.New()
	ti.Placeholder = "Leave blank for a generated opening"
	ti.CharLimit = 500
	ti.Width = 60
	return newStoryForm{length: 2, images: true, opening: ti}
}

// config builds the story configuration. A blank opening gets the default
// opening prompt for the chosen options.
func (f newStoryForm) config() story.Config {
	cfg := story.Config{
		Genre:        story.Genres[f.genre],
		Setting:      story.Settings[f.setting],
		Protagonist:  story.Protagonists[f.protagonist],
		Length:       story.Lengths[f.length],
		EnableImages: f.images,
	}
	cfg.InitialPrompt = strings.TrimSpace(f.opening.Value())
	if cfg.InitialPrompt == "" {
		cfg.InitialPrompt = cfg.DefaultInitialPrompt()
	}
	return cfg
}

func (f *newStoryForm) focus(field int) {
	f.field = (field + fieldCount) % fieldCount
	if f.field == fieldOpening {
		f.opening.Focus()
	} else {
		f.opening.Blur()
	}
}

func (f *newStoryForm) cycle(delta int) {
	wrap := func(v, n int) int { return (v + delta + n) % n }
	switch f.field {
	case fieldGenre:
		f.genre = wrap(f.genre, len(story.Genres))
	case fieldSetting:
		f.setting = wrap(f.setting, len(story.Settings))
	case fieldProtagonist:
		f.protagonist = wrap(f.protagonist, len(story.Protagonists))
	case fieldLength:
		f.length = wrap(f.length, len(story.Lengths))
	case fieldImages:
		f.images = !f.images
	}
}

// update handles a key for the form. submit is set when the form is complete.
func (f newStoryForm) update(msg tea.KeyMsg) (newStoryForm, tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyEnter:
		return f, nil, true
	case tea.KeyTab, tea.KeyDown:
		f.focus(f.field + 1)
		return f, nil, false
	case tea.KeyShiftTab, tea.KeyUp:
		f.focus(f.field - 1)
		return f, nil, false
	case tea.KeyLeft:
		if f.field != fieldOpening {
			f.cycle(-1)
			return f, nil, false
		}
	case tea.KeyRight:
		if f.field != fieldOpening {
			f.cycle(1)
			return f, nil, false
		}
	}
	if f.field != fieldOpening {
		return f, nil, false
	}
	var cmd tea.Cmd
	f.opening, cmd = f.opening.Update(msg)
	return f, cmd, false
}

func (f newStoryForm) view(p palette) string {
	var b strings.Builder
	b.WriteString(p.title.Render("New Story") + "\n\n")
	row := func(field int, label, value string) {
		marker := "  "
		style := promptStyle
		if f.field == field {
			marker = p.accent.Render("▶ ")
			style = p.choice
		}
		fmt.Fprintf(&b, "%s%-13s %s\n", marker, label+":", style.Render(value))
	}
	row(fieldGenre, "Genre", "‹ "+string(story.Genres[f.genre])+" ›")
	row(fieldSetting, "Setting", "‹ "+story.Settings[f.setting]+" ›")
	row(fieldProtagonist, "Protagonist", "‹ "+story.Protagonists[f.protagonist]+" ›")
	row(fieldLength, "Length", "‹ "+story.Lengths[f.length]+" ›")
	row(fieldImages, "Images", "‹ "+onOff(f.images)+" ›")
	row(fieldOpening, "Opening", "")
	b.WriteString("  " + f.opening.View() + "\n\n")
	b.WriteString(promptStyle.Render("↑/↓ move, ←/→ change, Enter to begin, Esc for menu"))
	return b.String()
}

// Seed form fields, in tab order.
const (
	seedFieldText = iota
	seedFieldImage
	seedFieldImages
	seedFieldCount
)

type seedForm struct {
	field  int
	text   textarea.Model
	image  textinput.Model
	images bool
}

func newSeedForm() seedForm {
	ta := textarea.New()
	ta.Placeholder = "Paste your story here, or type @path/to/story.txt"
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetWidth(70)
	ta.SetHeight(10)
	ta.Focus()

	ti := textinput.New()
	ti.Placeholder = "Optional image file for the story"
	ti.Width = 60

	return seedForm{text: ta, image: ti, images: true}
}

func (f *seedForm) focus(field int) {
	f.field = (field + seedFieldCount) % seedFieldCount
	f.text.Blur()
	f.image.Blur()
	switch f.field {
	case seedFieldText:
		f.text.Focus()
	case seedFieldImage:
		f.image.Focus()
	}
}

// update handles a key for the form. Ctrl+S submits because Enter inserts
// newlines in the seed text.
func (f seedForm) update(msg tea.KeyMsg) (seedForm, tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlS:
		return f, nil, true
	case tea.KeyTab:
		f.focus(f.field + 1)
		return f, nil, false
	case tea.KeyShiftTab:
		f.focus(f.field - 1)
		return f, nil, false
	}

	var cmd tea.Cmd
	switch f.field {
	case seedFieldText:
		f.text, cmd = f.text.Update(msg)
	case seedFieldImage:
		if msg.Type == tea.KeyEnter {
			return f, nil, true
		}
		f.image, cmd = f.image.Update(msg)
	case seedFieldImages:
		switch msg.Type {
		case tea.KeyLeft, tea.KeyRight, tea.KeySpace:
			f.images = !f.images
		case tea.KeyEnter:
			return f, nil, true
		}
	}
	return f, cmd, false
}

func (f seedForm) view(p palette) string {
	var b strings.Builder
	b.WriteString(p.title.Render("Continue From Seed Text") + "\n\n")
	b.WriteString("Mark speakers with \"User:\" and \"Assistant:\" lines. Unmarked text is narration.\n\n")
	b.WriteString(f.text.View() + "\n\n")
	b.WriteString("Image: " + f.image.View() + "\n")
	marker := "  "
	if f.field == seedFieldImages {
		marker = p.accent.Render("▶ ")
	}
	b.WriteString(marker + "Image generation: " + p.choice.Render("‹ "+onOff(f.images)+" ›") + "\n\n")
	b.WriteString(promptStyle.Render("Tab to move, Ctrl+S to begin, Esc for menu"))
	return b.String()
}

func onOff(b bool) string {
	if b {
		return "Enabled"
	}
	return "Disabled"
}
