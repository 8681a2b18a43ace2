package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/husky/internal/session"
	"github.com/muurk/husky/internal/urls"
)

const (
	labelAuthKey       = "Auth key"
	labelAuthKeyActive = "Auth key (ENTER to submit)"
	labelUser          = "Username"
	labelUserActive    = "Username (ENTER to initiate tie)"
	labelMessage       = "Message"
	labelMessageActive = "Message (ENTER to send)"
	logoutPrompt       = " / ENTER to log out"
	logTitle           = "Progress log"
)

func label(inactive, active string, focused bool) string {
	if focused {
		return active
	}
	return inactive
}

func (m AppModel) contentWidth() int {
	return m.Width - 8
}

func (m AppModel) renderAuth() string {
	var b strings.Builder

	header := Logo + "\n" + fmt.Sprintf("%s (%s)", AppVersion(), m.server)
	if m.focus == focusHeader {
		header = FocusedTextStyle.Render(header)
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	focused := m.focus == focusFirstInput
	b.WriteString(RenderInput(label(labelAuthKey, labelAuthKeyActive, focused), m.credential.View(), focused, m.contentWidth()))
	b.WriteString("\n")

	if m.status != "" {
		b.WriteString(ErrorBoxStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render(urls.Repository))
	return b.String()
}

func (m AppModel) renderJob() string {
	job := m.snap.Job
	if job == nil {
		return ""
	}
	var b strings.Builder

	title := job.Title
	switch job.Outcome.Kind {
	case session.Succeeded:
		title = SuccessBoxStyle.Render("✓ " + title)
	case session.Failed:
		title = ErrorBoxStyle.Render("✗ " + title)
	default:
		title = RenderTitle(title)
	}
	b.WriteString(lipgloss.PlaceHorizontal(m.contentWidth(), lipgloss.Center, title))
	b.WriteString("\n\n")

	b.WriteString(m.progress.ViewAs(float64(job.Progress) / 100))
	b.WriteString("\n\n")

	lines := make([]string, len(job.Log))
	for i, entry := range job.Log {
		lines[i] = Wrap(fmt.Sprintf("%d %s", i+1, entry), m.contentWidth()-4)
	}
	b.WriteString(InputLabelStyle.Render(logTitle))
	b.WriteString("\n")
	b.WriteString(LogBoxStyle.Width(m.contentWidth()).Render(strings.Join(lines, "\n")))

	if !job.Active() {
		b.WriteString("\n")
		b.WriteString(SubtitleStyle.Render("Press ENTER to continue"))
	}
	return b.String()
}

// sessionStatus is the pairing line of the chat header
func sessionStatus(p session.Pairing) string {
	if p.Paired {
		return "Tied with " + p.Peer
	}
	return "Untied"
}

func (m AppModel) renderSession() string {
	sess := m.snap.Session
	if sess == nil {
		return ""
	}
	var b strings.Builder

	header := fmt.Sprintf("%s %s / %s / %s", AppName, AppVersion(), sess.Identity.DisplayName, sessionStatus(sess.Pairing))
	if m.focus == focusHeader {
		header = FocusedTextStyle.Render(header + logoutPrompt)
	}
	b.WriteString(header)
	b.WriteString("\n\n")

	focused := m.focus == focusFirstInput
	b.WriteString(RenderInput(label(labelUser, labelUserActive, focused), m.subject.View(), focused, m.contentWidth()))
	b.WriteString("\n")

	b.WriteString(m.renderMessages(sess.Messages))
	b.WriteString("\n")

	focused = m.focus == focusSecondInput
	b.WriteString(RenderInput(label(labelMessage, labelMessageActive, focused), m.message.View(), focused, m.contentWidth()))

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(ErrorBoxStyle.Render(m.status))
	}
	return b.String()
}

// renderMessages shows the newest messages that fit, most recent first
func (m AppModel) renderMessages(messages []string) string {
	// Header, two input boxes and the frame take the rest
	rows := m.Height - 22
	if rows < 3 {
		rows = 3
	}
	width := m.contentWidth() - 4

	var lines []string
	for _, msg := range messages {
		wrapped := Wrap(msg, width)
		if strings.HasPrefix(msg, "!") {
			wrapped = NoticeStyle.Render(wrapped)
		}
		lines = append(lines, strings.Split(wrapped, "\n")...)
		if len(lines) >= rows {
			lines = lines[:rows]
			break
		}
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return MessagesBoxStyle.Width(m.contentWidth()).Render(strings.Join(lines, "\n"))
}
