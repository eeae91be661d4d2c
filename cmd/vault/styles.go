package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

var (
	colorAccent  = lipgloss.Color("#3B82F6")
	colorMuted   = lipgloss.Color("240")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(colorError).Bold(true)
	idStyle      = lipgloss.NewStyle().Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
)

const (
	iconSuccess = "✓"
	iconWarning = "⚠"
	iconError   = "✗"
)

// isTTY reports whether stdout is a terminal. Styling is skipped otherwise
// so piped output stays plain.
func isTTY() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func styled(style lipgloss.Style, s string) string {
	if !isTTY() {
		return s
	}
	return style.Render(s)
}

func printStyled(w io.Writer, icon string, style lipgloss.Style, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", styled(style, icon), fmt.Sprintf(format, args...))
}

func printSuccess(w io.Writer, format string, args ...any) {
	printStyled(w, iconSuccess, successStyle, format, args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	printStyled(w, iconWarning, warningStyle, format, args...)
}

func printFailure(w io.Writer, format string, args ...any) {
	printStyled(w, iconError, errorStyle, format, args...)
}

// renderPayload renders markdown-looking payloads for the terminal.
func renderPayload(content string) string {
	if !isTTY() || !hasMarkdown(content) {
		return content
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimSpace(rendered)
}

// hasMarkdown checks for markdown syntax, most specific markers first.
func hasMarkdown(content string) bool {
	for _, marker := range []string{"```", "## ", "# ", "**", "](http", "- "} {
		if strings.Contains(content, marker) {
			return true
		}
	}
	return false
}
