package tui

import "github.com/charmbracelet/lipgloss"

var (
	TitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	BulletStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1)
	TextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	DimTextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	SpinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	SuccessStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	PlayheadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)

	keptStyle            = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	keptSelectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true)
	deletedStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	deletedSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	itemStyle            = lipgloss.NewStyle().PaddingLeft(2)
	selectedItemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)
