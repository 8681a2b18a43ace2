package tui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"

	"github.com/muurk/husky/internal/version"
)

// AppName is shown in every header
const AppName = "Husky"

// Logo is shown above the login prompt
const Logo = `   __            __
  / /  __ _____ / /____ __
 / _ \/ // (_-</  '_/ // /
/_//_/\_,_/___/_/\_\\_, /
                   /___/`

// AppVersion returns the application version from the centralized version package
func AppVersion() string {
	return version.Short()
}

// Layout constants for responsive terminal width
const (
	MinTerminalWidth  = 48
	MinTerminalHeight = 16
	MaxContentWidth   = 120
)

// Color palette
var (
	PrimaryColor   = lipgloss.Color("#00B7EB") // Cyan
	SecondaryColor = lipgloss.Color("#43BF6D") // Green
	WarningColor   = lipgloss.Color("#FFA500") // Orange
	ErrorColor     = lipgloss.Color("#FF5F5F") // Red

	TextColor   = lipgloss.Color("#FFFFFF")
	SubtleColor = lipgloss.Color("#626262")
	BorderColor = lipgloss.Color("#00B7EB")
)

// Common styles
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(SubtleColor).
			Italic(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	// Focused header line, e.g. "ENTER to log out"
	FocusedTextStyle = lipgloss.NewStyle().
				Foreground(PrimaryColor)

	// Input box with focus
	FocusedInputStyle = lipgloss.NewStyle().
				Border(lipgloss.ThickBorder()).
				BorderForeground(PrimaryColor).
				Padding(0, 1)

	// Input box without focus
	BlurredInputStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(SubtleColor).
				Padding(0, 1)

	InputLabelStyle = lipgloss.NewStyle().
			Foreground(SubtleColor)

	MessagesBoxStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(SubtleColor).
				Padding(0, 1)

	LogBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(BorderColor).
			Padding(0, 1)

	SuccessBoxStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	ErrorBoxStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true)

	NoticeStyle = lipgloss.NewStyle().
			Foreground(WarningColor)
)

// RenderTitle renders a title with consistent styling
func RenderTitle(text string) string {
	return TitleStyle.Render(text)
}

// RenderInput renders a labelled input box
func RenderInput(label, value string, focused bool, width int) string {
	style := BlurredInputStyle
	if focused {
		style = FocusedInputStyle
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		InputLabelStyle.Render(label),
		style.Width(width-4).Render(value),
	)
}

// Wrap word-wraps text to width columns
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	return wordwrap.String(text, width)
}

// BuildHeaderContent creates header content with app name, version and relay
func BuildHeaderContent(server string) string {
	left := lipgloss.NewStyle().
		Foreground(TextColor).
		Bold(true).
		Render(AppName + " " + AppVersion())

	right := lipgloss.NewStyle().
		Foreground(SubtleColor).
		Render(server)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, "  ", right)
}

// RenderApplicationContainer wraps every screen: header, content and a
// footer holding the help line, inside a border filling the terminal.
func RenderApplicationContainer(server, content, footerText string, terminalWidth, terminalHeight int) string {
	if terminalWidth < MinTerminalWidth {
		terminalWidth = MinTerminalWidth
	}
	if terminalHeight < MinTerminalHeight {
		terminalHeight = MinTerminalHeight
	}

	headerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Bottom: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	footerStyle := lipgloss.NewStyle().
		BorderStyle(lipgloss.Border{Top: "─"}).
		BorderForeground(BorderColor).
		Width(terminalWidth-4).
		Padding(0, 1)

	contentStyle := lipgloss.NewStyle().
		Width(terminalWidth-4).
		Padding(0, 1)

	inner := lipgloss.JoinVertical(
		lipgloss.Left,
		headerStyle.Render(BuildHeaderContent(server)),
		contentStyle.Render(content),
		footerStyle.Render(HelpStyle.Render(footerText)),
	)

	bordered := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(BorderColor).
		Width(terminalWidth - 2).
		Height(terminalHeight - 2).
		AlignVertical(lipgloss.Top).
		Render(inner)

	return lipgloss.Place(terminalWidth, terminalHeight, lipgloss.Left, lipgloss.Top, bordered)
}

// GetTerminalSize returns the current terminal width and height, used
// until the first tea.WindowSizeMsg arrives.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80, 24
	}
	if width < MinTerminalWidth {
		width = MinTerminalWidth
	}
	if width > MaxContentWidth {
		width = MaxContentWidth
	}
	if height < MinTerminalHeight {
		height = MinTerminalHeight
	}
	return width, height
}
