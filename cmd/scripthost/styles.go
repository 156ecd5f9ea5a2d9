package main

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/wippyai/scripthost/metadata"
)

// Adaptive colors keep the output readable on light and dark terminals.
var (
	accent  = lipgloss.AdaptiveColor{Light: "#0B6E4F", Dark: "#3DDC97"}
	muted   = lipgloss.AdaptiveColor{Light: "#8A8A8A", Dark: "#5C6370"}
	failure = lipgloss.AdaptiveColor{Light: "#B3261E", Dark: "#F28B82"}
	ink     = lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#101418"}
)

var (
	moduleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ink).
			Background(accent).
			Padding(0, 1)

	exportStyle = lipgloss.NewStyle().Foreground(accent)

	signatureStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#1F5FA8", Dark: "#7FB4F0"})

	cursorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accent).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(accent)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#5B3E96", Dark: "#C6A0F6"})

	failureStyle = lipgloss.NewStyle().Bold(true).Foreground(failure)

	hintStyle = lipgloss.NewStyle().Italic(true).Foreground(muted)
)

// kindColors tints descriptor kinds in inspect output.
var kindColors = map[metadata.Kind]lipgloss.AdaptiveColor{
	metadata.KindType:      {Light: "#9A6700", Dark: "#E5C07B"},
	metadata.KindField:     {Light: "#1F5FA8", Dark: "#7FB4F0"},
	metadata.KindMethod:    {Light: "#0B6E4F", Dark: "#3DDC97"},
	metadata.KindAttribute: {Light: "#8A8A8A", Dark: "#5C6370"},
}

// kindLabel renders k padded to a fixed column.
func kindLabel(k metadata.Kind) string {
	style := lipgloss.NewStyle().Width(9)
	if c, ok := kindColors[k]; ok {
		style = style.Foreground(c)
	}
	return style.Render(k.String())
}
