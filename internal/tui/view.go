package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
	"github.com/mpataki/codeplay/internal/storage"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240"))

	focusedPaneStyle = paneStyle.
				BorderForeground(lipgloss.Color("205"))

	outputOK    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	outputError = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	suggestion  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))

	statusInfo    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	statusSuccess = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))

	userStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	botStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func (a *App) View() string {
	switch a.view {
	case ViewPresets:
		return a.viewPresets()
	case ViewSnippets:
		return a.viewSnippets()
	case ViewSaveSnippet:
		return a.viewSave()
	}
	return a.viewPlayground()
}

func (a *App) viewPlayground() string {
	header := titleStyle.Render("codeplay") + "  " + dimStyle.Render(string(a.session.Language()))
	if a.session.Running() {
		header += "  " + a.spinner.View() + " running"
	} else if a.session.Suggesting() {
		header += "  " + a.spinner.View() + " asking the assistant"
	}

	editorPane, chatPane := paneStyle, paneStyle
	if a.focus == FocusEditor {
		editorPane = focusedPaneStyle
	} else {
		chatPane = focusedPaneStyle
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		editorPane.Render(a.editor.View()),
		paneStyle.Render(a.output.View()),
	)

	body := left
	if a.chat != nil {
		right := chatPane.Render(lipgloss.JoinVertical(lipgloss.Left,
			a.chatView.View(),
			a.chatInput.View(),
		))
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
	}

	help := "[ctrl+r] run  [ctrl+f] fix  [ctrl+a] apply  [ctrl+x] discard  [ctrl+y] copy  [ctrl+d] download  [ctrl+s] save  [ctrl+o] open  [ctrl+p] presets  [ctrl+l] language  [tab] focus  [ctrl+c] quit"
	return header + "\n" + body + "\n" + a.viewStatus() + "\n" + helpStyle.Render(help)
}

func (a *App) viewStatus() string {
	if a.err != nil {
		return statusError.Render(fmt.Sprintf("Error: %v", a.err))
	}
	if a.status == nil {
		return ""
	}
	switch a.status.Level {
	case notify.LevelSuccess:
		return statusSuccess.Render("✓ " + a.status.Message)
	case notify.LevelError:
		return statusError.Render("✗ " + a.status.Message)
	default:
		return statusInfo.Render("• " + a.status.Message)
	}
}

// refreshOutput re-renders the output pane from the session.
func (a *App) refreshOutput() {
	var b strings.Builder

	if report, ok := a.session.Report(); ok {
		if report.IsError {
			b.WriteString(outputError.Render(report.Output))
		} else {
			b.WriteString(outputOK.Render(report.Output))
		}
	} else {
		b.WriteString(dimStyle.Render("Run your code to see output here."))
	}

	if sug, ok := a.session.Suggestion(); ok {
		b.WriteString("\n\n")
		b.WriteString(suggestion.Render("Suggested fix  [ctrl+a] apply  [ctrl+x] discard"))
		b.WriteString("\n")
		b.WriteString(sug.FixedSource)
	}

	a.output.SetContent(b.String())
	a.output.GotoTop()
}

// refreshChat re-renders the transcript.
func (a *App) refreshChat() {
	if a.chat == nil {
		return
	}
	var b strings.Builder
	for _, msg := range a.chat.Messages() {
		switch {
		case msg.Author == models.AuthorUser:
			b.WriteString(userStyle.Render("You") + "\n" + msg.Content + "\n\n")
		case msg.Pending:
			b.WriteString(botStyle.Render("Assistant") + "\n" + a.spinner.View() + " thinking\n\n")
		default:
			b.WriteString(botStyle.Render("Assistant") + "\n" + a.renderMarkdown(msg.Content) + "\n")
		}
	}
	a.chatView.SetContent(b.String())
	a.chatView.GotoBottom()
}

func (a *App) renderMarkdown(md string) string {
	if a.renderer == nil {
		return md + "\n"
	}
	out, err := a.renderer.Render(md)
	if err != nil {
		return md + "\n"
	}
	return strings.TrimLeft(out, "\n")
}

func (a *App) viewPresets() string {
	s := titleStyle.Render("Presets") + "\n\n"

	if len(a.presets) == 0 {
		s += "(no presets found)\n"
	}
	for i, p := range a.presets {
		line := fmt.Sprintf("%-16s %-11s %s", p.Name, p.Language, dimStyle.Render(p.Description))
		if i == a.selectedIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += "\n" + helpStyle.Render("[enter] load  [esc] back")
	return s
}

func (a *App) viewSnippets() string {
	s := titleStyle.Render("Saved snippets") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}
	if len(a.snippetList) == 0 {
		s += "No snippets yet. Press ctrl+s in the editor to save one.\n"
	}
	for i, sn := range a.snippetList {
		line := fmt.Sprintf("%-20s %-11s %s", truncate(sn.Name, 20), sn.Language, storage.FormatTimeAgo(sn.UpdatedAt))
		if i == a.selectedIdx {
			line = selectedStyle.Render("▶ " + line)
		} else {
			line = "  " + line
		}
		s += line + "\n"
	}

	s += "\n" + helpStyle.Render("[enter] load  [d] delete  [esc] back")
	return s
}

func (a *App) viewSave() string {
	s := titleStyle.Render("Save snippet") + "\n\n"
	s += a.nameInput.View() + "\n"
	s += "\n" + helpStyle.Render("[enter] save  [esc] cancel")
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
