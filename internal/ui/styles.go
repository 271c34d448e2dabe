// Package ui holds the terminal styles used for command output.
package ui

import "github.com/charmbracelet/lipgloss"

var (
	ColorSuccess = lipgloss.Color("35")  // Green
	ColorWarning = lipgloss.Color("214") // Gold/yellow
	ColorError   = lipgloss.Color("196") // Red
	ColorDim     = lipgloss.Color("241") // Gray
	ColorAccent  = lipgloss.Color("39")  // Blue
)

const (
	SymbolCheck  = "✓"
	SymbolCross  = "✗"
	SymbolBullet = "●"
	Rule         = "────────────────────────"
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorDim)
)

// Check renders a green check mark
func Check() string {
	return SuccessStyle.Render(SymbolCheck)
}

// Cross renders a red cross
func Cross() string {
	return ErrorStyle.Render(SymbolCross)
}

// Kind renders a failure category tag such as [connection]
func Kind(kind string) string {
	return WarningStyle.Render("[" + kind + "]")
}

// Title renders a section heading followed by a rule
func Title(s string) string {
	return TitleStyle.Render(s) + "\n" + DimStyle.Render(Rule)
}
