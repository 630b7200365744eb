package server

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/omochice/assistant-session/internal/config"
	"github.com/omochice/assistant-session/pkg/protocol"
)

// peer holds the protocol state of one connected client.
type peer struct {
	client    *Client
	assistant Assistant
	delay     time.Duration
	logger    zerolog.Logger
	quit      <-chan struct{}

	done     chan struct{}
	doneOnce sync.Once
	wg       sync.WaitGroup

	mu             sync.Mutex
	systemPrompt   string
	historyEnabled bool
	history        []Turn
	historyReset   bool
	cancel         context.CancelFunc
	replyID        uint64
}

func newPeer(client *Client, assistant Assistant, cfg config.ServerConfig, quit <-chan struct{}, logger zerolog.Logger) *peer {
	return &peer{
		client:         client,
		assistant:      assistant,
		delay:          cfg.ReplyDelay,
		logger:         logger,
		quit:           quit,
		done:           make(chan struct{}),
		systemPrompt:   cfg.SystemPrompt,
		historyEnabled: cfg.HistoryEnabled,
	}
}

// stop cancels any reply in flight and waits for it to finish.
func (p *peer) stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.doneOnce.Do(func() { close(p.done) })
	p.wg.Wait()
}

// send queues a frame, giving up when the client or server goes away.
func (p *peer) send(raw string) bool {
	select {
	case p.client.Outgoing <- []byte(raw):
		return true
	case <-p.done:
		return false
	case <-p.quit:
		return false
	}
}

func (p *peer) confirm(code protocol.EventCode) {
	p.send(protocol.Confirm(code))
}

func (p *peer) handle(raw string) {
	frame, err := protocol.Decode(raw)
	if err != nil {
		p.logger.Warn().Str("message", raw).Msg("received unrecognized websocket message")
		p.send(protocol.Encode(protocol.EventDiagnostic, diagnosticHTML("received unrecognized websocket message: %q", raw)))
		return
	}

	switch frame.Code {
	case protocol.EventPing:
		p.send(protocol.Encode(protocol.EventPong, "pong"))
	case protocol.EventPong:
		p.logger.Debug().Msg("received pong")
	case protocol.EventUserPrompt:
		p.startReply(frame.Payload)
	case protocol.EventCancelUserPrompt:
		p.mu.Lock()
		cancel := p.cancel
		if cancel != nil {
			p.cancel = nil
			p.history = nil
			p.historyReset = true
		}
		p.mu.Unlock()
		if cancel != nil {
			cancel()
			p.confirm(protocol.EventCancelUserPrompt)
		}
	case protocol.EventSystemPrompt:
		p.mu.Lock()
		p.systemPrompt = frame.Payload
		p.history = nil
		p.mu.Unlock()
		p.confirm(protocol.EventSystemPrompt)
	case protocol.EventResetHistory:
		p.mu.Lock()
		alreadyReset := p.historyReset
		if !alreadyReset {
			p.history = nil
			p.historyReset = true
		}
		p.mu.Unlock()
		if !alreadyReset {
			p.confirm(protocol.EventResetHistory)
		}
	case protocol.EventEnableHistory:
		p.setHistoryEnabled(true)
		p.confirm(protocol.EventEnableHistory)
	case protocol.EventDisableHistory:
		p.setHistoryEnabled(false)
		p.confirm(protocol.EventDisableHistory)
	case protocol.EventLoadSystemPrompt:
		p.mu.Lock()
		prompt := p.systemPrompt
		p.mu.Unlock()
		p.send(protocol.Encode(protocol.EventLoadSystemPrompt, prompt))
	default:
		p.logger.Warn().Str("tag", frame.Tag).Msg("received unrecognized websocket event")
		p.send(protocol.Encode(protocol.EventDiagnostic, diagnosticHTML("received unrecognized websocket event: %q", raw)))
	}
}

func (p *peer) setHistoryEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.historyEnabled = enabled
}

// startReply confirms the prompt and streams the reply in the background.
// Each chunk is followed by ASSISTANT_WAIT, and the reply ends with
// ASSISTANT_FINISH.
func (p *peer) startReply(prompt string) {
	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.cancel = cancel
	p.replyID++
	id := p.replyID
	req := Request{SystemPrompt: p.systemPrompt, Prompt: prompt}
	if p.historyEnabled {
		req.History = append([]Turn(nil), p.history...)
	}
	p.mu.Unlock()

	p.confirm(protocol.EventUserPrompt)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()

		var reply strings.Builder
		chunks, err := p.assistant.Reply(ctx, req)
		if err != nil && ctx.Err() == nil {
			p.send(protocol.Encode(protocol.EventDiagnostic, diagnosticHTML("assistant failed: %v", err)))
		}

	stream:
		for _, chunk := range chunks {
			if p.delay > 0 {
				select {
				case <-time.After(p.delay):
				case <-ctx.Done():
					break stream
				}
			}
			if ctx.Err() != nil {
				break
			}
			if !p.send(protocol.Encode(protocol.EventAssistantOutput, MarkdownToHTML(chunk))) {
				return
			}
			if !p.send(protocol.EventAssistantWait.Tag()) {
				return
			}
			reply.WriteString(chunk)
			reply.WriteString("\n")
		}
		p.send(protocol.EventAssistantFinish.Tag())

		p.mu.Lock()
		defer p.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if p.historyEnabled {
			p.history = append(p.history, Turn{Prompt: prompt, Reply: strings.TrimSpace(reply.String())})
		}
		p.historyReset = false
		if p.replyID == id {
			p.cancel = nil
		}
	}()
}
