package view

import "github.com/charmbracelet/lipgloss"

var (
	primaryColor = lipgloss.Color("#0969DA")
	accentColor  = lipgloss.Color("#2DA44E")
	errorColor   = lipgloss.Color("#CF222E")
	dimColor     = lipgloss.Color("#6E7681")
	linkColor    = lipgloss.Color("#58A6FF")
	titleColor   = lipgloss.Color("#39D353")
	warningColor = lipgloss.Color("#D29922")

	HeaderStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	IndexStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Width(5).
			Align(lipgloss.Right).
			PaddingRight(1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(titleColor).
			Bold(true)

	LinkStyle = lipgloss.NewStyle().
			Foreground(linkColor).
			Underline(true)

	DimStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	PendingStyle = lipgloss.NewStyle().
			Foreground(warningColor).
			Italic(true)

	StatusStyle = lipgloss.NewStyle().
			Foreground(accentColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(accentColor).
			Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(errorColor).
			Padding(0, 1)
)
