package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors for the UI theme - Muted Professional Palette
var (
	ColorPrimary   = lipgloss.Color("#A78BFA") // Soft Purple (Lavender 400)
	ColorSecondary = lipgloss.Color("#22D3EE") // Bright Cyan (Cyan 400)
	ColorSuccess   = lipgloss.Color("#059669") // Emerald 600 (muted green)
	ColorWarning   = lipgloss.Color("#D97706") // Amber 600 (muted amber)
	ColorError     = lipgloss.Color("#DC2626") // Red 600 (muted red)
	ColorMuted     = lipgloss.Color("#9CA3AF") // Neutral Gray (Gray 400)
	ColorDim       = lipgloss.Color("#6B7280") // Gray 500
	ColorRunning   = lipgloss.Color("#60A5FA") // Sky Blue (Blue 400)
	ColorInfo      = lipgloss.Color("#2DD4BF") // Teal Info (Teal 400)
)

// MessageIcons provides consistent icons for different message types
var MessageIcons = map[string]string{
	"success": "✓",
	"error":   "✗",
	"warning": "⚠",
	"info":    "ℹ",
	"pending": "○",
	"active":  "●",
}

// ToolIcons maps tool names to the icon shown next to a call.
var ToolIcons = map[string]string{
	"read":    "📄",
	"write":   "✨",
	"diff":    "📊",
	"delete":  "🗑",
	"exec":    "💻",
	"tree":    "🌲",
	"default": "⚙",
}

// GetToolIcon returns the icon for a given tool name.
func GetToolIcon(toolName string) string {
	if icon, ok := ToolIcons[strings.ToLower(toolName)]; ok {
		return icon
	}
	return ToolIcons["default"]
}

// GetToolIconColor returns the semantic color for a given tool name.
func GetToolIconColor(toolName string) lipgloss.Color {
	switch strings.ToLower(toolName) {
	case "read", "diff":
		return ColorPrimary
	case "write", "tree":
		return ColorSuccess
	case "delete":
		return ColorWarning
	case "exec":
		return ColorRunning
	}
	return ColorMuted
}

// Styles contains all UI styles.
type Styles struct {
	Prompt      lipgloss.Style
	Status      lipgloss.Style
	ToolCall    lipgloss.Style
	ToolResult  lipgloss.Style
	Output      lipgloss.Style
	Error       lipgloss.Style
	Warning     lipgloss.Style
	Success     lipgloss.Style
	Nudge       lipgloss.Style
	PlanTitle   lipgloss.Style
	PlanPending lipgloss.Style
	PlanActive  lipgloss.Style
	PlanDone    lipgloss.Style
	Dim         lipgloss.Style
	Banner      lipgloss.Style

	color bool
}

// DefaultStyles returns the default styles. Without color every style
// renders its input unchanged.
func DefaultStyles(color bool) *Styles {
	if !color {
		plain := lipgloss.NewStyle()
		return &Styles{
			Prompt: plain, Status: plain, ToolCall: plain, ToolResult: plain, Output: plain,
			Error: plain, Warning: plain, Success: plain, Nudge: plain, PlanTitle: plain,
			PlanPending: plain, PlanActive: plain, PlanDone: plain, Dim: plain, Banner: plain,
		}
	}

	return &Styles{
		Prompt:      lipgloss.NewStyle().Foreground(ColorPrimary).Bold(true),
		Status:      lipgloss.NewStyle().Foreground(ColorMuted).Italic(true),
		ToolCall:    lipgloss.NewStyle().Foreground(ColorSecondary).Bold(true),
		ToolResult:  lipgloss.NewStyle().Foreground(ColorMuted),
		Output:      lipgloss.NewStyle().Foreground(ColorDim),
		Error:       lipgloss.NewStyle().Foreground(ColorError).Bold(true),
		Warning:     lipgloss.NewStyle().Foreground(ColorWarning).Bold(true),
		Success:     lipgloss.NewStyle().Foreground(ColorSuccess).Bold(true),
		Nudge:       lipgloss.NewStyle().Foreground(ColorWarning).Italic(true),
		PlanTitle:   lipgloss.NewStyle().Foreground(ColorInfo).Bold(true),
		PlanPending: lipgloss.NewStyle().Foreground(ColorMuted),
		PlanActive:  lipgloss.NewStyle().Foreground(ColorRunning).Bold(true),
		PlanDone:    lipgloss.NewStyle().Foreground(ColorSuccess),
		Dim:         lipgloss.NewStyle().Foreground(ColorDim),
		Banner: lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDim).
			Padding(0, 1),
		color: true,
	}
}

// Color reports whether the styles produce colored output.
func (s *Styles) Color() bool {
	return s.color
}
