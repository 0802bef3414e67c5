package report

import "github.com/charmbracelet/lipgloss"

// Colors used in reports.
var (
	colorPrimary   = lipgloss.Color("62")  // Purple
	colorSecondary = lipgloss.Color("241") // Gray
	colorMuted     = lipgloss.Color("240") // Darker gray
	colorHighlight = lipgloss.Color("212") // Pink
	colorSuccess   = lipgloss.Color("78")  // Green
	colorWarn      = lipgloss.Color("214") // Orange
	colorDanger    = lipgloss.Color("196") // Red
)

// Header style for the report title.
var Header = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("255")).
	Background(colorPrimary).
	Padding(0, 1)

// Section style for section headings.
var Section = lipgloss.NewStyle().
	Bold(true).
	Foreground(colorHighlight).
	MarginTop(1)

// Label style for field names.
var Label = lipgloss.NewStyle().
	Foreground(colorSecondary).
	Width(20)

// Value style for field values.
var Value = lipgloss.NewStyle().
	Foreground(lipgloss.Color("255"))

// Muted style for secondary detail.
var Muted = lipgloss.NewStyle().
	Foreground(colorMuted)

// SourceBadge style for source names.
var SourceBadge = lipgloss.NewStyle().
	Foreground(colorPrimary).
	Background(lipgloss.Color("236")).
	Padding(0, 1).
	MarginRight(1)

// Box frames the summary block.
var Box = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorPrimary).
	Padding(0, 1)

var (
	sevHigh   = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	sevMedium = lipgloss.NewStyle().Foreground(colorWarn).Bold(true)
	sevLow    = lipgloss.NewStyle().Foreground(colorSuccess)
)
