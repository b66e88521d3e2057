package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/codeplay/internal/assistant"
	"github.com/mpataki/codeplay/internal/chat"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
	"github.com/mpataki/codeplay/internal/playground"
	"github.com/mpataki/codeplay/internal/preset"
	"github.com/mpataki/codeplay/internal/runner"
	"github.com/mpataki/codeplay/internal/workspace"
)

func newTestApp(t *testing.T, source string) (*App, Notices) {
	t.Helper()
	ws, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	presets, err := preset.Builtin()
	require.NoError(t, err)

	notices := NewNotices()
	svc := assistant.NewService(assistant.NewSimulated(-1, nil), nil)
	run := runner.New(runner.Options{Delay: -1})
	session := playground.New(playground.Options{
		Runner:    run,
		Suggester: svc,
		Downloads: ws,
		Notifier:  notices,
		Language:  models.LangJavaScript,
		Source:    source,
	})
	app := NewApp(Deps{
		Session:   session,
		Chat:      chat.New(svc, chat.Options{Notifier: notices}),
		Presets:   presets,
		Languages: run.Languages(),
		Notices:   notices,
	})
	t.Cleanup(app.Close)

	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return app, notices
}

// press sends a key and runs the resulting command, feeding its message
// back into the app. Batched and blocking commands are not followed.
func press(t *testing.T, a *App, key tea.KeyMsg) {
	t.Helper()
	_, cmd := a.Update(key)
	if cmd == nil {
		return
	}
	switch msg := cmd().(type) {
	case runDoneMsg, suggestionMsg, chatSettledMsg, snippetsLoadedMsg:
		a.Update(msg)
	}
}

func ctrl(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func TestRunShowsOutput(t *testing.T) {
	a, _ := newTestApp(t, `console.log("from the editor")`)

	press(t, a, ctrl(tea.KeyCtrlR))

	report, ok := a.session.Report()
	require.True(t, ok)
	assert.Equal(t, "from the editor", report.Output)
	assert.Contains(t, a.output.View(), "from the editor")
}

func TestFixThenApply(t *testing.T) {
	a, _ := newTestApp(t, "console.log(x)")

	press(t, a, ctrl(tea.KeyCtrlR))
	press(t, a, ctrl(tea.KeyCtrlF))

	sug, ok := a.session.Suggestion()
	require.True(t, ok)
	assert.Contains(t, a.output.View(), "Suggested fix")

	press(t, a, ctrl(tea.KeyCtrlA))
	assert.Equal(t, sug.FixedSource, a.editor.Value())
	_, ok = a.session.Suggestion()
	assert.False(t, ok)
}

func TestFixWithoutErrorIsIgnored(t *testing.T) {
	a, _ := newTestApp(t, "return 1")
	press(t, a, ctrl(tea.KeyCtrlF))

	require.NotNil(t, a.status)
	assert.Equal(t, notify.LevelInfo, a.status.Level)
	_, ok := a.session.Suggestion()
	assert.False(t, ok)
}

func TestDownloadNoticeReachesStatusLine(t *testing.T) {
	a, notices := newTestApp(t, "return 1")
	press(t, a, ctrl(tea.KeyCtrlD))

	require.Len(t, notices, 1)
	a.Update(a.waitForNotice())
	require.NotNil(t, a.status)
	assert.Equal(t, playground.NoticeDownloaded, a.status.Message)
	assert.Contains(t, a.viewStatus(), playground.NoticeDownloaded)
}

func TestChatSend(t *testing.T) {
	a, _ := newTestApp(t, "")

	press(t, a, ctrl(tea.KeyTab))
	require.Equal(t, FocusChat, a.focus)

	a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	press(t, a, ctrl(tea.KeyEnter))

	msgs := a.chat.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.Equal(t, assistant.GreetingReply, msgs[2].Content)
	assert.Empty(t, a.chatInput.Value())
}

func TestBlankChatIsIgnored(t *testing.T) {
	a, _ := newTestApp(t, "")
	press(t, a, ctrl(tea.KeyTab))
	press(t, a, ctrl(tea.KeyEnter))
	assert.Len(t, a.chat.Messages(), 1)
}

func TestCycleLanguage(t *testing.T) {
	a, _ := newTestApp(t, "")
	seen := map[models.Language]bool{a.session.Language(): true}
	for range a.languages {
		press(t, a, ctrl(tea.KeyCtrlL))
		seen[a.session.Language()] = true
	}
	assert.Len(t, seen, len(a.languages))
}

func TestPresetPicker(t *testing.T) {
	a, _ := newTestApp(t, "old")

	press(t, a, ctrl(tea.KeyCtrlP))
	require.Equal(t, ViewPresets, a.view)
	assert.Contains(t, a.View(), "Presets")

	for i, p := range a.presets {
		if p.Name == "hello-lua" {
			a.selectedIdx = i
		}
	}
	press(t, a, ctrl(tea.KeyEnter))

	assert.Equal(t, ViewPlayground, a.view)
	assert.Equal(t, models.LangLua, a.session.Language())
	assert.Contains(t, a.editor.Value(), "greet")
}
