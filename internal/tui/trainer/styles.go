// ============================================================================
// hatsuon - Pronunciation Trainer
// ============================================================================
//
// Package:     trainer
// Description: Styles for the practice TUI
// Author:      Mike Stoffels
// Created:     2025-12-10
// License:     MIT
// ============================================================================

package trainer

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Color Palette - shared with the other hatsuon terminal views
var (
	// Primary colors
	ColorPrimary   = lipgloss.Color("#8B5CF6") // Violet
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorAccent    = lipgloss.Color("#F59E0B") // Amber
	ColorSuccess   = lipgloss.Color("#10B981") // Emerald
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorDimmed    = lipgloss.Color("#374151") // Dark Gray

	// Background colors
	ColorBgPanel = lipgloss.Color("#1E293B") // Slate 800

	// Text colors
	ColorText      = lipgloss.Color("#F8FAFC") // Slate 50
	ColorTextMuted = lipgloss.Color("#94A3B8") // Slate 400
	ColorTextDim   = lipgloss.Color("#64748B") // Slate 500
)

// Logo/Header styles
var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	ProgressStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	TitlePanelStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(ColorPrimary).
			Padding(0, 2)
)

// Phrase card styles
var (
	CardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDimmed).
			Padding(1, 2)

	CompleteCardStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorSuccess).
				Padding(1, 2)

	PhraseStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	RomajiStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Italic(true)

	TranslationStyle = lipgloss.NewStyle().
				Foreground(ColorTextMuted)
)

// Feedback styles
var (
	ScoreGoodStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess).
			Bold(true)

	ScoreFairStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	ScorePoorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	FeedbackLabelStyle = lipgloss.NewStyle().
				Foreground(ColorTextDim)

	FeedbackPanelStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(ColorDimmed).
				Padding(0, 1)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)
)

// Status bar styles
var (
	StatusBarStyle = lipgloss.NewStyle().
			Background(ColorBgPanel).
			Foreground(ColorText).
			Padding(0, 1)

	StatusRecordingStyle = lipgloss.NewStyle().
				Foreground(ColorError).
				Bold(true)

	StatusProcessingStyle = lipgloss.NewStyle().
				Foreground(ColorAccent)

	StatusIdleStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)
)

// Help styles
var (
	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			MarginTop(1)

	HelpKeyStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HelpDescStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	SpinnerStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary)
)

// Icons
const (
	IconRecording = "● "
	IconWaiting   = "◌ "
	IconPassed    = "✔ "
	IconRetry     = "↻ "
	IconError     = "✖ "
	IconSpeaker   = "♪ "
)

// Logo
const Logo = "hatsuon"

// RenderKeyHint renders a keyboard shortcut hint
func RenderKeyHint(key, description string) string {
	return HelpKeyStyle.Render(key) + " " + HelpDescStyle.Render(description)
}

// RenderScore renders a score colored against the success threshold
func RenderScore(score, threshold float64) string {
	text := fmt.Sprintf("%.0f%%", score)
	switch {
	case score >= threshold:
		return ScoreGoodStyle.Render(text)
	case score >= threshold/2:
		return ScoreFairStyle.Render(text)
	default:
		return ScorePoorStyle.Render(text)
	}
}
