package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"github.com/mpataki/codeplay/internal/chat"
	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
	"github.com/mpataki/codeplay/internal/playground"
	"github.com/mpataki/codeplay/internal/preset"
)

type View int

const (
	ViewPlayground View = iota
	ViewPresets
	ViewSnippets
	ViewSaveSnippet
)

type Focus int

const (
	FocusEditor Focus = iota
	FocusChat
)

// SnippetLister is the part of the snippet library the picker needs.
type SnippetLister interface {
	ListSnippets(limit int) ([]*models.Snippet, error)
	DeleteSnippet(name string) error
}

// Notices is a notifier that feeds the status line.
type Notices chan notify.Notice

func NewNotices() Notices { return make(Notices, 16) }

func (n Notices) Notify(level notify.Level, msg string) {
	select {
	case n <- notify.Notice{Level: level, Message: msg}:
	default:
		// Status line is best effort; drop when nobody is draining
	}
}

type Deps struct {
	Session   *playground.Session
	Chat      *chat.Manager
	Presets   map[string]*models.Preset
	Snippets  SnippetLister
	Languages []models.Language
	Notices   Notices
	Logger    *zap.Logger
}

type App struct {
	session   *playground.Session
	chat      *chat.Manager
	presets   []*models.Preset
	snippets  SnippetLister
	languages []models.Language
	notices   Notices
	logger    *zap.Logger

	editor    textarea.Model
	chatInput textinput.Model
	nameInput textinput.Model
	output    viewport.Model
	chatView  viewport.Model
	spinner   spinner.Model
	renderer  *glamour.TermRenderer

	view        View
	focus       Focus
	status      *notify.Notice
	snippetList []*models.Snippet
	selectedIdx int

	width  int
	height int
	err    error
}

func NewApp(deps Deps) *App {
	editor := textarea.New()
	editor.ShowLineNumbers = true
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.Placeholder = "Write your code here..."
	editor.SetValue(deps.Session.Source())
	editor.Focus()

	chatInput := textinput.New()
	chatInput.Placeholder = "Ask the assistant... (enter to send)"
	chatInput.Prompt = "│ "
	chatInput.CharLimit = 4096

	nameInput := textinput.New()
	nameInput.Placeholder = "snippet name"
	nameInput.CharLimit = 128

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(40),
	)

	a := &App{
		session:   deps.Session,
		chat:      deps.Chat,
		presets:   preset.Sorted(deps.Presets),
		snippets:  deps.Snippets,
		languages: deps.Languages,
		notices:   deps.Notices,
		logger:    logging.OrNop(deps.Logger),
		editor:    editor,
		chatInput: chatInput,
		nameInput: nameInput,
		output:    viewport.New(80, 8),
		chatView:  viewport.New(40, 20),
		spinner:   sp,
		renderer:  renderer,
	}
	a.refreshOutput()
	a.refreshChat()
	return a
}

func (a *App) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, a.spinner.Tick}
	if a.notices != nil {
		cmds = append(cmds, a.waitForNotice)
	}
	return tea.Batch(cmds...)
}

// Close cancels outstanding work. Results arriving later are discarded.
func (a *App) Close() {
	a.session.Close()
	if a.chat != nil {
		a.chat.Close()
	}
}

func (a *App) busy() bool {
	return a.session.Running() || a.session.Suggesting() || (a.chat != nil && a.chat.Pending())
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		if a.busy() {
			a.refreshChat()
		}
		return a, cmd

	case noticeMsg:
		n := notify.Notice(msg)
		a.status = &n
		return a, a.waitForNotice

	case runDoneMsg:
		a.err = msg.err
		a.refreshOutput()
		return a, nil

	case suggestionMsg:
		a.err = msg.err
		a.refreshOutput()
		return a, nil

	case chatSettledMsg:
		a.refreshChat()
		return a, nil

	case snippetsLoadedMsg:
		a.snippetList = msg.snippets
		a.err = msg.err
		if a.selectedIdx >= len(a.snippetList) {
			a.selectedIdx = 0
		}
		return a, nil

	case snippetDeletedMsg:
		a.err = msg.err
		if a.selectedIdx > 0 && a.selectedIdx >= len(a.snippetList)-1 {
			a.selectedIdx--
		}
		return a, a.loadSnippets
	}

	return a.forward(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		a.Close()
		return a, tea.Quit
	}

	switch a.view {
	case ViewPresets:
		return a.handlePresetKey(msg)
	case ViewSnippets:
		return a.handleSnippetKey(msg)
	case ViewSaveSnippet:
		return a.handleSaveKey(msg)
	}
	return a.handlePlaygroundKey(msg)
}

func (a *App) handlePlaygroundKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+r":
		if a.session.Running() {
			return a, nil
		}
		a.session.SetSource(a.editor.Value())
		a.err = nil
		return a, a.runCmd()

	case "ctrl+f":
		if a.session.Suggesting() {
			return a, nil
		}
		if report, ok := a.session.Report(); !ok || !report.IsError {
			a.status = &notify.Notice{Level: notify.LevelInfo, Message: "Run the code first; there is no error to fix"}
			return a, nil
		}
		a.err = nil
		return a, a.suggestCmd()

	case "ctrl+a":
		if err := a.session.ApplySuggestion(); err == nil {
			a.editor.SetValue(a.session.Source())
			a.refreshOutput()
		}
		return a, nil

	case "ctrl+x":
		a.session.DiscardSuggestion()
		a.refreshOutput()
		return a, nil

	case "ctrl+y":
		a.session.SetSource(a.editor.Value())
		_ = a.session.Copy()
		return a, nil

	case "ctrl+d":
		a.session.SetSource(a.editor.Value())
		if _, err := a.session.Download(); err != nil {
			a.err = err
		}
		return a, nil

	case "ctrl+s":
		if a.snippets == nil {
			return a, nil
		}
		a.session.SetSource(a.editor.Value())
		a.view = ViewSaveSnippet
		a.nameInput.Reset()
		a.nameInput.Focus()
		return a, textinput.Blink

	case "ctrl+p":
		a.view = ViewPresets
		a.selectedIdx = 0
		return a, nil

	case "ctrl+o":
		if a.snippets == nil {
			return a, nil
		}
		a.view = ViewSnippets
		a.selectedIdx = 0
		return a, a.loadSnippets

	case "ctrl+l":
		a.cycleLanguage()
		return a, nil

	case "tab":
		a.toggleFocus()
		return a, nil

	case "enter":
		if a.focus == FocusChat {
			return a, a.sendChat()
		}
	}

	return a.forward(msg)
}

func (a *App) handlePresetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.view = ViewPlayground
	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
	case "down", "j":
		if a.selectedIdx < len(a.presets)-1 {
			a.selectedIdx++
		}
	case "enter":
		if a.selectedIdx < len(a.presets) {
			a.session.LoadPreset(a.presets[a.selectedIdx])
			a.editor.SetValue(a.session.Source())
			a.refreshOutput()
		}
		a.view = ViewPlayground
	}
	return a, nil
}

func (a *App) handleSnippetKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		a.view = ViewPlayground
	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}
	case "down", "j":
		if a.selectedIdx < len(a.snippetList)-1 {
			a.selectedIdx++
		}
	case "d":
		if a.selectedIdx < len(a.snippetList) {
			return a, a.deleteSnippet(a.snippetList[a.selectedIdx].Name)
		}
	case "enter":
		if a.selectedIdx < len(a.snippetList) {
			if err := a.session.LoadSnippet(a.snippetList[a.selectedIdx].Name); err != nil {
				a.err = err
			} else {
				a.editor.SetValue(a.session.Source())
				a.refreshOutput()
			}
		}
		a.view = ViewPlayground
	}
	return a, nil
}

func (a *App) handleSaveKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.view = ViewPlayground
		return a, nil
	case "enter":
		name := strings.TrimSpace(a.nameInput.Value())
		if name == "" {
			return a, nil
		}
		if _, err := a.session.SaveSnippet(name); err != nil {
			a.err = err
		}
		a.view = ViewPlayground
		return a, nil
	}

	var cmd tea.Cmd
	a.nameInput, cmd = a.nameInput.Update(msg)
	return a, cmd
}

// forward hands msg to the focused input.
func (a *App) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if a.focus == FocusChat {
		a.chatInput, cmd = a.chatInput.Update(msg)
		return a, cmd
	}
	a.editor, cmd = a.editor.Update(msg)
	return a, cmd
}

func (a *App) toggleFocus() {
	if a.chat == nil {
		return
	}
	if a.focus == FocusEditor {
		a.focus = FocusChat
		a.editor.Blur()
		a.chatInput.Focus()
		return
	}
	a.focus = FocusEditor
	a.chatInput.Blur()
	a.editor.Focus()
}

func (a *App) cycleLanguage() {
	if len(a.languages) == 0 {
		return
	}
	current := a.session.Language()
	next := a.languages[0]
	for i, lang := range a.languages {
		if lang == current {
			next = a.languages[(i+1)%len(a.languages)]
			break
		}
	}
	a.session.SetLanguage(next)
}

func (a *App) sendChat() tea.Cmd {
	text := a.chatInput.Value()
	turn, err := a.chat.Post(text)
	if err != nil {
		// Blank input and input while a reply is pending are ignored
		return nil
	}
	a.chatInput.Reset()
	a.refreshChat()
	return func() tea.Msg {
		return chatSettledMsg{err: turn.Await(context.Background())}
	}
}

func (a *App) layout() {
	leftWidth := a.width * 3 / 5
	rightWidth := a.width - leftWidth - 3
	outputHeight := 8
	bodyHeight := a.height - 4

	a.editor.SetWidth(leftWidth - 2)
	a.editor.SetHeight(max(bodyHeight-outputHeight-3, 3))
	a.output.Width = leftWidth - 2
	a.output.Height = outputHeight

	a.chatInput.Width = rightWidth - 4
	a.chatView.Width = rightWidth - 2
	a.chatView.Height = max(bodyHeight-3, 3)

	if r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(rightWidth-4, 20)),
	); err == nil {
		a.renderer = r
	}
	a.refreshOutput()
	a.refreshChat()
}
