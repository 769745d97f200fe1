package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jwebster45206/story-weaver/internal/config"
	"github.com/jwebster45206/story-weaver/internal/engine"
	"github.com/jwebster45206/story-weaver/pkg/conversation"
	"github.com/jwebster45206/story-weaver/pkg/story"
)

const (
	AgentName       = "Narrator"
	PlaceHolderText = "What do you do? (type a number to pick a choice, /help for commands)"
)

const helpText = `Commands:
• 1-9        - Pick a choice
• /regen     - Regenerate the last response
• /memory X  - Ask the narrator to remember X
• /recap     - Ask for a recap of the story so far
• /image [n] [prompt] - Visualize the latest or nth turn
• /export    - Save the transcript to a file
• /copy      - Copy the transcript to the clipboard
• /menu      - Return to the main menu
• /help      - Toggle this help
• Ctrl+C     - Quit`

type screen int

const (
	screenMenu screen = iota
	screenNewStory
	screenSeed
	screenPlaying
	screenError
)

// ConsoleUI is the BubbleTea model that runs the UI.
// https://github.com/charmbracelet/bubbletea
type ConsoleUI struct {
	cfg    *config.Config
	engine *engine.Engine
	logger *slog.Logger

	snap    engine.Snapshot
	screen  screen
	width   int
	height  int
	ready   bool
	hasSave bool

	menuIndex int
	newStory  newStoryForm
	seed      seedForm

	chatViewport viewport.Model
	textarea     textarea.Model
	spinner      spinner.Model

	status    string
	statusErr bool
	showHelp  bool

	// Quit confirmation state
	showQuitModal bool
}

// snapshotMsg carries engine state pushed by OnUpdate.
type snapshotMsg struct {
	snap engine.Snapshot
}

type opDoneMsg struct {
	op  string
	err error
}

type saveCheckMsg struct {
	exists bool
	err    error
}

type statusMsg struct {
	text string
	err  bool
}

func NewConsoleUI(cfg *config.Config, eng *engine.Engine, logger *slog.Logger) ConsoleUI {
	ta := textarea.New()
	ta.Placeholder = PlaceHolderText
	ta.Prompt = promptStyle.Render(":: ")
	ta.CharLimit = 1000
	ta.SetWidth(50)
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	chatVp := viewport.New(50, 20)
	chatVp.MouseWheelEnabled = true

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = loadingStyle

	return ConsoleUI{
		cfg:          cfg,
		engine:       eng,
		logger:       logger,
		snap:         eng.Snapshot(),
		newStory:     newNewStoryForm(),
		seed:         newSeedForm(),
		chatViewport: chatVp,
		textarea:     ta,
		spinner:      sp,
	}
}

func (m ConsoleUI) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.checkSave())
}

func (m ConsoleUI) palette() palette {
	return paletteFor(m.snap.Theme)
}

func (m ConsoleUI) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.ready = true
		m.writeChatContent()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.screen == screenPlaying && (m.snap.Busy || m.snap.ImageBusy) {
			m.writeChatContent()
		}
		return m, cmd

	case snapshotMsg:
		return m.applySnapshot(msg.snap)

	case saveCheckMsg:
		if msg.err != nil {
			m.logger.Warn("Failed to check for saved story", "error", msg.err)
		}
		m.hasSave = msg.exists
		if m.menuIndex >= len(menuItems(m.hasSave)) {
			m.menuIndex = 0
		}
		return m, nil

	case statusMsg:
		m.setStatus(msg.text, msg.err)
		return m, nil

	case opDoneMsg:
		return m.handleOpDone(msg)

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			if m.showQuitModal {
				return m, tea.Quit
			}
			m.showQuitModal = true
			return m, nil
		}
		if m.showQuitModal {
			return m.updateQuitModal(msg)
		}
		switch m.screen {
		case screenMenu:
			return m.updateMenu(msg)
		case screenNewStory:
			return m.updateNewStory(msg)
		case screenSeed:
			return m.updateSeed(msg)
		case screenError:
			if msg.Type == tea.KeyEnter || msg.Type == tea.KeyEsc {
				m.engine.BackToMenu()
				m.screen = screenMenu
				return m, m.checkSave()
			}
			return m, nil
		case screenPlaying:
			return m.updatePlaying(msg)
		}

	case tea.MouseMsg:
		if m.screen == screenPlaying {
			var cmd tea.Cmd
			m.chatViewport, cmd = m.chatViewport.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *ConsoleUI) resize() {
	chatWidth := int(float64(m.width)*0.72) - 2
	m.chatViewport.Width = chatWidth - 2
	m.chatViewport.Height = max(m.height-8, 5)
	m.textarea.SetWidth(chatWidth - 4)
	m.seed.text.SetWidth(min(m.width-10, 100))
}

func (m ConsoleUI) applySnapshot(s engine.Snapshot) (tea.Model, tea.Cmd) {
	m.snap = s
	var cmd tea.Cmd
	switch s.Mode {
	case engine.ModePlaying:
		if m.screen != screenPlaying {
			m.screen = screenPlaying
			m.showHelp = false
			m.textarea.Reset()
			cmd = m.textarea.Focus()
		}
	case engine.ModeError:
		m.screen = screenError
		m.textarea.Blur()
	case engine.ModeMainMenu:
		if m.screen == screenPlaying || m.screen == screenError {
			m.screen = screenMenu
			cmd = m.checkSave()
		}
		if s.Err != "" {
			m.setStatus(s.Err, true)
		}
	}
	m.writeChatContent()
	return m, cmd
}

func (m ConsoleUI) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	err := msg.err
	if err == nil {
		return m, nil
	}
	m.logger.Debug("Operation finished with error", "op", msg.op, "error", err)
	switch {
	case errors.Is(err, engine.ErrBusy):
		m.setStatus("Please wait for the current request to finish.", true)
	case errors.Is(err, engine.ErrNoSave):
		m.setStatus("No saved game found.", true)
	case errors.Is(err, conversation.ErrNothingToRegenerate), errors.Is(err, conversation.ErrNoPrompt):
		m.setStatus("Nothing to regenerate yet.", true)
	case errors.Is(err, engine.ErrTurnNotFound):
		m.setStatus("That turn no longer exists.", true)
	case errors.Is(err, engine.ErrNotPlaying):
		m.setStatus("No story is active.", true)
	case msg.op == "new-story":
		m.setStatus(err.Error(), true)
	}
	return m, nil
}

func (m *ConsoleUI) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m ConsoleUI) checkSave() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		exists, err := eng.HasSave(context.Background())
		return saveCheckMsg{exists: exists, err: err}
	}
}

// runOp runs a blocking engine operation off the UI goroutine.
func (m ConsoleUI) runOp(op string, fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(context.Background())}
	}
}

func (m ConsoleUI) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	items := menuItems(m.hasSave)
	switch msg.Type {
	case tea.KeyEsc:
		m.showQuitModal = true
	case tea.KeyUp:
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case tea.KeyDown:
		if m.menuIndex < len(items)-1 {
			m.menuIndex++
		}
	case tea.KeyEnter:
		m.status = ""
		switch items[m.menuIndex] {
		case menuNewStory:
			m.newStory = newNewStoryForm()
			m.screen = screenNewStory
		case menuSeed:
			m.seed = newSeedForm()
			m.seed.text.SetWidth(min(m.width-10, 100))
			m.screen = screenSeed
		case menuResume:
			return m, m.runOp("resume", m.engine.Resume)
		case menuQuit:
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m ConsoleUI) updateNewStory(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.screen = screenMenu
		return m, nil
	}
	form, cmd, submit := m.newStory.update(msg)
	m.newStory = form
	if !submit {
		return m, cmd
	}
	cfg := form.config()
	m.logger.Info("New story requested", "genre", cfg.Genre, "length", cfg.Length)
	return m, m.runOp("new-story", func(ctx context.Context) error {
		return m.engine.StartNewStory(ctx, cfg)
	})
}

func (m ConsoleUI) updateSeed(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.screen = screenMenu
		return m, nil
	}
	form, cmd, submit := m.seed.update(msg)
	m.seed = form
	if !submit {
		return m, cmd
	}

	raw, err := readSeedInput(form.text.Value())
	if err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	image, err := readImageDataURI(form.image.Value())
	if err != nil {
		m.setStatus(err.Error(), true)
		return m, nil
	}
	images := form.images
	return m, m.runOp("seed", func(ctx context.Context) error {
		return m.engine.StartFromSeed(ctx, raw, image, images)
	})
}

func (m ConsoleUI) updateQuitModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		return m, tea.Quit
	case tea.KeyEsc:
		m.showQuitModal = false
		return m, nil
	}
	switch msg.String() {
	case "y", "Y":
		return m, tea.Quit
	case "n", "N":
		m.showQuitModal = false
	}
	return m, nil
}

func (m ConsoleUI) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.showQuitModal = true
		return m, nil
	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatViewport, cmd = m.chatViewport.Update(msg)
		return m, cmd
	case tea.KeyEnter:
		input := strings.TrimSpace(m.textarea.Value())
		if input == "" {
			return m, nil
		}
		if strings.HasPrefix(input, "/") {
			m.textarea.Reset()
			return m.handleCommand(input)
		}
		if choice, ok := m.choiceFor(input); ok {
			input = choice
		}
		return m.submit(input)
	case tea.KeyRunes:
		// a lone digit on an empty line picks that choice
		if m.textarea.Value() == "" && len(msg.Runes) == 1 {
			if choice, ok := m.choiceFor(string(msg.Runes)); ok {
				return m.submit(choice)
			}
		}
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m ConsoleUI) submit(text string) (tea.Model, tea.Cmd) {
	if m.snap.Busy {
		m.setStatus("Please wait for the current request to finish.", true)
		return m, nil
	}
	m.textarea.Reset()
	m.status = ""
	return m, m.runOp("submit", func(ctx context.Context) error {
		return m.engine.Submit(ctx, text)
	})
}

// currentChoices returns the choices of the latest turn when it is a
// finished narrator turn.
func (m ConsoleUI) currentChoices() []story.Choice {
	h := m.snap.History
	if len(h) == 0 {
		return nil
	}
	last := h[len(h)-1]
	if last.Speaker != story.SpeakerAssistant || last.IsStreaming {
		return nil
	}
	return last.Choices
}

func (m ConsoleUI) choiceFor(input string) (string, bool) {
	n, err := strconv.Atoi(input)
	if err != nil {
		return "", false
	}
	choices := m.currentChoices()
	if n < 1 || n > len(choices) {
		return "", false
	}
	return choices[n-1].Text, true
}

func (m ConsoleUI) handleCommand(input string) (tea.Model, tea.Cmd) {
	name, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)
	m.status = ""

	switch strings.ToLower(name) {
	case "/help":
		m.showHelp = !m.showHelp

	case "/regen", "/regenerate":
		return m, m.runOp("regenerate", m.engine.Regenerate)

	case "/memory":
		if args == "" {
			m.setStatus("Usage: /memory <something to remember>", true)
			return m, nil
		}
		return m, m.runOp("memory", func(ctx context.Context) error {
			return m.engine.AddMemory(ctx, args)
		})

	case "/recap":
		return m, m.runOp("recap", m.engine.RequestRecap)

	case "/image":
		return m.handleImage(parseImageCommand(args))

	case "/export":
		return m, m.exportTranscript()

	case "/copy":
		return m, m.copyTranscript()

	case "/menu":
		m.engine.BackToMenu()
		m.screen = screenMenu
		return m, m.checkSave()

	default:
		m.setStatus(fmt.Sprintf("Unknown command %s. Type /help for commands.", name), true)
	}
	return m, nil
}

func (m ConsoleUI) handleImage(cmd imageCommand) (tea.Model, tea.Cmd) {
	if m.snap.ImageBusy {
		m.setStatus("An image is already being generated.", true)
		return m, nil
	}
	h := m.snap.History
	var target *story.Turn
	switch {
	case cmd.Turn > 0 && cmd.Turn <= len(h):
		target = &h[cmd.Turn-1]
	case cmd.Turn > 0:
		m.setStatus(fmt.Sprintf("There is no turn %d.", cmd.Turn), true)
		return m, nil
	default:
		target = latestImageTarget(h)
	}
	if target == nil {
		m.setStatus("There is nothing to visualize yet.", true)
		return m, nil
	}

	prompt := cmd.Prompt
	if prompt == "" {
		prompt = target.ImagePrompt
	}
	id := target.ID
	return m, m.runOp("image", func(ctx context.Context) error {
		return m.engine.GenerateImage(ctx, id, prompt)
	})
}

// latestImageTarget picks the newest turn with an image prompt, else the
// newest narrator turn.
func latestImageTarget(h []story.Turn) *story.Turn {
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].ImagePrompt != "" {
			return &h[i]
		}
	}
	for i := len(h) - 1; i >= 0; i-- {
		if h[i].Speaker == story.SpeakerAssistant {
			return &h[i]
		}
	}
	return nil
}

func (m ConsoleUI) exportTranscript() tea.Cmd {
	eng, dir := m.engine, m.cfg.ExportDir
	return func() tea.Msg {
		text, err := eng.Export()
		if err != nil {
			return statusMsg{text: "Nothing to export yet.", err: true}
		}
		path, err := writeExport(dir, eng.ExportFileName(), text)
		if err != nil {
			m.logger.Error("Failed to export transcript", "error", err)
			return statusMsg{text: err.Error(), err: true}
		}
		m.logger.Info("Transcript exported", "path", path)
		return statusMsg{text: "Story exported to " + path}
	}
}

func (m ConsoleUI) copyTranscript() tea.Cmd {
	eng := m.engine
	return func() tea.Msg {
		text, err := eng.Export()
		if err != nil {
			return statusMsg{text: "Nothing to copy yet.", err: true}
		}
		if err := clipboard.WriteAll(text); err != nil {
			m.logger.Warn("Clipboard unavailable", "error", err)
			return statusMsg{text: "Failed to copy: " + err.Error(), err: true}
		}
		return statusMsg{text: "Story copied to the clipboard."}
	}
}

// writeChatContent renders the transcript for the current viewport width.
func (m *ConsoleUI) writeChatContent() {
	if m.screen != screenPlaying {
		return
	}
	follow := m.chatViewport.AtBottom() || m.snap.Busy
	m.chatViewport.SetContent(m.renderTranscript(max(m.chatViewport.Width-2, 20)))
	if follow {
		m.chatViewport.GotoBottom()
	}
}

func (m ConsoleUI) renderTranscript(width int) string {
	p := m.palette()
	var b strings.Builder
	b.WriteString(p.title.Render("STORY WEAVER") + "\n")
	b.WriteString(p.separator.Render(strings.Repeat("─", width)) + "\n\n")

	history := m.snap.History
	for i, t := range history {
		num := promptStyle.Render(fmt.Sprintf("[%d] ", i+1))
		label, style := speakerLabel(t, p)
		text := t.Text
		if t.IsStreaming {
			if text == "" {
				text = m.spinner.View() + " The narrator is thinking..."
			} else {
				text += " " + m.spinner.View()
			}
		}
		b.WriteString(num + style.Bold(true).Render(label+":") + "\n")
		b.WriteString(style.Render(wordwrap.String(text, width)) + "\n")

		if t.ImageURL != "" {
			b.WriteString(p.accent.Render("  ▣ ") + describeImage(t.ImageURL) + "\n")
		}
		switch {
		case m.snap.ImageTurnID == t.ID:
			b.WriteString("  " + m.spinner.View() + loadingStyle.Render(" Rendering image...") + "\n")
		case t.ImagePrompt != "" && t.ImageURL == "":
			b.WriteString(promptStyle.Render(wordwrap.String(fmt.Sprintf("  Image prompt: %s (/image %d)", t.ImagePrompt, i+1), width)) + "\n")
		}
		b.WriteString("\n")
	}

	if choices := m.currentChoices(); len(choices) > 0 {
		for i, c := range choices {
			b.WriteString(p.choice.Render(wordwrap.String(fmt.Sprintf("  %d) %s", i+1, c.Text), width)) + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func speakerLabel(t story.Turn, p palette) (string, lipgloss.Style) {
	switch t.Speaker {
	case story.SpeakerUser:
		return "You", p.user
	case story.SpeakerAssistant:
		return AgentName, p.narrator
	default:
		if strings.HasPrefix(t.Text, story.MemoryPrefix) {
			return "Memory", p.system
		}
		return "System", p.system
	}
}

func describeImage(url string) string {
	if strings.HasPrefix(url, "data:") {
		mime, _, _ := strings.Cut(strings.TrimPrefix(url, "data:"), ";")
		return fmt.Sprintf("Image ready (%s, %d KB). Use /export to keep the story.", mime, len(url)*3/4/1024)
	}
	return "Image: " + url
}

func writeMetadata(s engine.Snapshot, p palette, images bool) string {
	var b strings.Builder
	b.WriteString(p.title.Render("STORY") + "\n\n")
	fmt.Fprintf(&b, "Genre:\n%s\n\n", s.Config.Genre)
	fmt.Fprintf(&b, "Setting:\n%s\n\n", s.Config.Setting)
	fmt.Fprintf(&b, "Protagonist:\n%s\n\n", s.Config.Protagonist)
	if s.Chapter != "" {
		fmt.Fprintf(&b, "Chapter:\n%s\n\n", s.Chapter)
	}
	b.WriteString("Story arc:\n")
	current := s.ArcStage.Index()
	for i, stage := range story.ArcStages {
		switch {
		case i == current:
			b.WriteString(p.accent.Render("▶ "+string(stage)) + "\n")
		case i < current:
			b.WriteString(promptStyle.Render("✓ "+string(stage)) + "\n")
		default:
			b.WriteString(promptStyle.Render("  "+string(stage)) + "\n")
		}
	}
	b.WriteString("\n")
	imageState := onOff(s.Config.EnableImages)
	if s.Config.EnableImages && !images {
		imageState = "Unavailable"
	}
	fmt.Fprintf(&b, "Images: %s\n", imageState)
	fmt.Fprintf(&b, "Turns: %d\n\n", len(s.History))
	b.WriteString(promptStyle.Render("/help for commands"))
	return b.String()
}

func (m ConsoleUI) renderModal(body string, width int) string {
	modal := modalStyle.BorderForeground(m.palette().border).Width(width).Render(body)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal, lipgloss.WithWhitespaceChars(" "))
}

func (m ConsoleUI) statusLine() string {
	if m.status == "" {
		return ""
	}
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return loadingStyle.Render(m.status)
}

func (m ConsoleUI) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}
	if m.showQuitModal {
		var b strings.Builder
		b.WriteString(m.palette().title.Render("Quit?") + "\n\n")
		b.WriteString("Your story is saved automatically.\n\n")
		b.WriteString(promptStyle.Render("Press Y to quit, N to continue"))
		return m.renderModal(b.String(), 50)
	}

	p := m.palette()
	switch m.screen {
	case screenMenu:
		var b strings.Builder
		b.WriteString(p.title.Render("Interactive Story Weaver") + "\n\n")
		for i, item := range menuItems(m.hasSave) {
			if i == m.menuIndex {
				b.WriteString(selectedStyle.Background(p.border).Render("▶ "+item.label()) + "\n")
			} else {
				b.WriteString("  " + item.label() + "\n")
			}
		}
		b.WriteString("\n" + promptStyle.Render("Use ↑/↓ to navigate, Enter to select"))
		if m.status != "" {
			b.WriteString("\n\n" + m.statusLine())
		}
		return m.renderModal(b.String(), 60)

	case screenNewStory:
		body := m.newStory.view(p)
		if m.status != "" {
			body += "\n\n" + m.statusLine()
		}
		if m.snap.Busy {
			body += "\n\n" + m.spinner.View() + loadingStyle.Render(" Starting your story...")
		}
		return m.renderModal(body, 80)

	case screenSeed:
		body := m.seed.view(p)
		if m.status != "" {
			body += "\n\n" + m.statusLine()
		}
		if m.snap.Busy {
			body += "\n\n" + m.spinner.View() + loadingStyle.Render(" Reading your story...")
		}
		return m.renderModal(body, min(m.width-4, 104))

	case screenError:
		var b strings.Builder
		b.WriteString(errorStyle.Bold(true).Render("Something went wrong") + "\n\n")
		b.WriteString(wordwrap.String(m.snap.Err, 56) + "\n\n")
		b.WriteString(promptStyle.Render("Press Enter to return to the main menu"))
		return m.renderModal(b.String(), 60)
	}

	chatWidth := int(float64(m.width)*0.72) - 2
	metaWidth := m.width - chatWidth - 4

	top := m.chatViewport.View()
	if m.showHelp {
		top = lipgloss.JoinVertical(lipgloss.Left, top, p.title.Render("Help"), helpText)
	}
	status := m.statusLine()
	if status == "" && m.snap.Err != "" {
		status = errorStyle.Render(m.snap.Err)
	}

	chatPanel := chatPanelStyle.Width(chatWidth).Height(m.height - 1).Render(
		lipgloss.JoinVertical(lipgloss.Left,
			top,
			status,
			p.separator.Render(strings.Repeat("─", max(chatWidth-4, 1))),
			m.textarea.View(),
		),
	)
	metaPanel := metaPanelStyle.Width(metaWidth).Height(m.height - 1).Render(
		writeMetadata(m.snap, p, m.snap.ImagesAvailable),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, chatPanel, metaPanel)
}
