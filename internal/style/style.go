package style

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
)

// --- Reusable Colors ---
var (
	colorPink      = lipgloss.Color("205")
	colorDarkGray  = lipgloss.Color("240")
	colorLightGray = lipgloss.Color("229")
	colorCyan      = lipgloss.Color("212")
	colorGreen     = lipgloss.Color("42")
	colorYellow    = lipgloss.Color("214")
	colorRed       = lipgloss.Color("196")
)

// --- General Purpose Styles ---
var (
	ErrorStyle   = lipgloss.NewStyle().Foreground(colorRed)
	WarnStyle    = lipgloss.NewStyle().Foreground(colorYellow)
	SuccessStyle = lipgloss.NewStyle().Foreground(colorGreen)
	HelpStyle    = lipgloss.NewStyle().Faint(true)
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPink)
	DocStyle     = lipgloss.NewStyle().Margin(1, 2)
)

// --- Viewer Styles ---
var (
	PaneStyle      = lipgloss.NewStyle().BorderStyle(lipgloss.NormalBorder()).BorderForeground(colorDarkGray).Padding(0, 1)
	StatusBarStyle = lipgloss.NewStyle().Foreground(colorLightGray).Background(colorDarkGray).Padding(0, 1)
	HighlightStyle = lipgloss.NewStyle().Foreground(colorCyan)
	BadgeStyle     = lipgloss.NewStyle().Bold(true).Padding(0, 1)
)

// PhaseStyle colours a negotiation phase label.
func PhaseStyle(established, failed bool) lipgloss.Style {
	switch {
	case failed:
		return BadgeStyle.Foreground(colorRed)
	case established:
		return BadgeStyle.Foreground(colorGreen)
	default:
		return BadgeStyle.Foreground(colorYellow)
	}
}

// NewSpinner creates a spinner with a consistent style.
func NewSpinner() spinner.Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(colorPink)
	return s
}

// NewListDelegate returns the clip list delegate with our selection colours.
func NewListDelegate() list.DefaultDelegate {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(colorCyan).BorderForeground(colorPink)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(colorLightGray).BorderForeground(colorPink)
	return d
}
