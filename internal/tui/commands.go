package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
	"github.com/mpataki/codeplay/internal/playground"
)

// Messages

type noticeMsg notify.Notice

type runDoneMsg struct {
	report models.Report
	err    error
}

type suggestionMsg struct {
	suggestion models.Suggestion
	err        error
}

type chatSettledMsg struct {
	err error
}

type snippetsLoadedMsg struct {
	snippets []*models.Snippet
	err      error
}

type snippetDeletedMsg struct {
	name string
	err  error
}

// Commands

func (a *App) waitForNotice() tea.Msg {
	return noticeMsg(<-a.notices)
}

func (a *App) runCmd() tea.Cmd {
	return func() tea.Msg {
		report, err := a.session.Run(context.Background())
		return runDoneMsg{report: report, err: quiet(err)}
	}
}

func (a *App) suggestCmd() tea.Cmd {
	return func() tea.Msg {
		sug, err := a.session.RequestSuggestion(context.Background())
		return suggestionMsg{suggestion: sug, err: quiet(err)}
	}
}

func (a *App) loadSnippets() tea.Msg {
	snippets, err := a.snippets.ListSnippets(50)
	return snippetsLoadedMsg{snippets: snippets, err: err}
}

func (a *App) deleteSnippet(name string) tea.Cmd {
	return func() tea.Msg {
		return snippetDeletedMsg{name: name, err: a.snippets.DeleteSnippet(name)}
	}
}

// quiet drops the errors that only mean a trigger was ignored.
func quiet(err error) error {
	if errors.Is(err, playground.ErrBusy) || errors.Is(err, playground.ErrClosed) {
		return nil
	}
	return err
}
