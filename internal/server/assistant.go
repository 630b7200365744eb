package server

import (
	"context"
	"fmt"
	stdhtml "html"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// Turn is one prompt and reply pair kept as request history.
type Turn struct {
	Prompt string
	Reply  string
}

// Request is what an Assistant answers.
type Request struct {
	SystemPrompt string
	History      []Turn
	Prompt       string
}

// Assistant produces the markdown chunks of a reply.
type Assistant interface {
	Reply(ctx context.Context, req Request) ([]string, error)
}

// EchoAssistant is a deterministic Assistant that restates the prompt.
type EchoAssistant struct{}

// Reply implements Assistant.
func (EchoAssistant) Reply(ctx context.Context, req Request) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	chunks := []string{fmt.Sprintf("**You said:** %s", strings.TrimSpace(req.Prompt))}
	if req.SystemPrompt != "" {
		chunks = append(chunks, fmt.Sprintf("_System prompt:_ %s", req.SystemPrompt))
	}
	chunks = append(chunks, fmt.Sprintf("_Turns in history:_ %d", len(req.History)))
	return chunks, nil
}

// AssistantFunc adapts a function to the Assistant interface.
type AssistantFunc func(ctx context.Context, req Request) ([]string, error)

// Reply implements Assistant.
func (f AssistantFunc) Reply(ctx context.Context, req Request) ([]string, error) {
	return f(ctx, req)
}

// MarkdownToHTML renders a reply chunk the way it is sent on the wire.
func MarkdownToHTML(md string) string {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	doc := p.Parse([]byte(md))

	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags | html.HrefTargetBlank})
	return strings.TrimSpace(string(markdown.Render(doc, renderer)))
}

// diagnosticHTML formats an error for a DIAGNOSTIC frame.
func diagnosticHTML(format string, args ...any) string {
	return `<p style="color: red;"><strong>Websocket error: </strong>` +
		stdhtml.EscapeString(fmt.Sprintf(format, args...)) + `</p>`
}
