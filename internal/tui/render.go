package tui

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/omochice/assistant-session/internal/chat"
)

// AutoStyle picks a glamour style from the terminal background.
const AutoStyle = "auto"

var (
	userLabelStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#05ffa1")).Bold(true)
	assistantLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff")).Bold(true)
	diagnosticStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87"))
	statusStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a8a")).Italic(true)
	headerStyle         = lipgloss.NewStyle().Bold(true)
	offlineStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Background(lipgloss.Color("#d70000")).Padding(0, 1)
	helpStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("#8a8a8a"))
	errorStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f87")).Bold(true)
)

// Renderer turns chat entries into terminal text. Assistant and diagnostic
// entries arrive as HTML and are rendered through markdown.
type Renderer struct {
	style    string
	userName string
	width    int
	term     *glamour.TermRenderer
}

// NewRenderer creates a Renderer wrapping at width.
func NewRenderer(style, userName string, width int) *Renderer {
	if style == "" {
		style = AutoStyle
	}
	if userName == "" {
		userName = "You"
	}
	r := &Renderer{style: style, userName: userName}
	r.SetWidth(width)
	return r
}

// SetWidth rebuilds the markdown renderer for a new wrap width.
func (r *Renderer) SetWidth(width int) {
	if width <= 0 {
		width = 80
	}
	if width == r.width && r.term != nil {
		return
	}

	styleOpt := glamour.WithStandardStyle(r.style)
	if r.style == AutoStyle {
		styleOpt = glamour.WithAutoStyle()
	}
	r.width = width
	r.term = nil
	if term, err := glamour.NewTermRenderer(styleOpt, glamour.WithWordWrap(width)); err == nil {
		r.term = term
	}
}

// Entry renders one chat entry with its label.
func (r *Renderer) Entry(e chat.Entry) string {
	switch e.Role {
	case chat.RoleUser:
		return userLabelStyle.Render(r.userName) + "\n" + e.Text
	case chat.RoleAssistant:
		return assistantLabelStyle.Render("Assistant") + "\n" + r.Markdown(HTMLToMarkdown(e.Text))
	case chat.RoleDiagnostic:
		return diagnosticStyle.Render(HTMLToMarkdown(e.Text))
	default:
		return statusStyle.Render(e.Text)
	}
}

// Entries renders a whole chat log.
func (r *Renderer) Entries(entries []chat.Entry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		parts = append(parts, r.Entry(e))
	}
	return strings.Join(parts, "\n\n")
}

// Markdown renders md for the terminal, falling back to the raw text.
func (r *Renderer) Markdown(md string) string {
	if r.term == nil {
		return md
	}
	out, err := r.term.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}

// HTMLToMarkdown converts an HTML payload to markdown. Text that does not
// convert is returned unchanged.
func HTMLToMarkdown(html string) string {
	md, err := htmltomarkdown.ConvertString(html)
	if err != nil {
		return html
	}
	return strings.TrimSpace(md)
}
