package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout   = 5 * time.Second
	defaultQueueSize = 64
)

const (
	ActionMention    = "mention"
	ActionAssignment = "assignment"
)

// Message is the outbound side-effect request enqueued by the engine.
// The contract is "enqueued", not "delivered": delivery is best-effort
// and failures never reach the mutation that scheduled the message.
type Message struct {
	TaskID         string `json:"task_id"`
	TaskTitle      string `json:"task_title"`
	Action         string `json:"action_type"`
	CommentContent string `json:"comment_content,omitempty"`
	CommentAuthor  string `json:"comment_author,omitempty"`
	AssignedBy     string `json:"assigned_by,omitempty"`
}

// Queue is what the engine sees. Schedule must not block.
type Queue interface {
	Schedule(Message)
}

// Nop discards everything. Used when no notification targets are configured.
type Nop struct{}

func (Nop) Schedule(Message) {}

// Webhook is one generic outbound HTTP target.
type Webhook struct {
	URL    string
	Secret string
}

// Config carries the delivery targets. Injected at construction, never
// read from ambient process state.
type Config struct {
	TelegramToken  string
	TelegramChatID string
	Webhooks       []Webhook
}

// Dispatcher drains a buffered queue on a background goroutine and posts
// each message to every configured target.
type Dispatcher struct {
	cfg       Config
	client    *http.Client
	log       zerolog.Logger
	ch        chan Message
	closing   chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewDispatcher(cfg Config, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:     cfg,
		client:  &http.Client{Timeout: defaultTimeout},
		log:     log,
		ch:      make(chan Message, defaultQueueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	go d.run()
}

// Schedule enqueues without blocking. A full queue drops the message with
// a warning; the originating mutation has already committed. Scheduling
// after Close drops too; the message channel is never closed, so a late
// caller cannot panic the dispatcher.
func (d *Dispatcher) Schedule(m Message) {
	select {
	case <-d.closing:
		d.log.Warn().Str("task_id", m.TaskID).Str("action", m.Action).Msg("dispatcher closed, dropping")
		return
	default:
	}
	select {
	case d.ch <- m:
	default:
		d.log.Warn().Str("task_id", m.TaskID).Str("action", m.Action).Msg("notification queue full, dropping")
	}
}

// Close stops the worker after the queue drains. Safe to call twice.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() { close(d.closing) })
	<-d.done
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for {
		select {
		case m := <-d.ch:
			d.deliver(m)
		case <-d.closing:
			for {
				select {
				case m := <-d.ch:
					d.deliver(m)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(m Message) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	if d.cfg.TelegramToken != "" && d.cfg.TelegramChatID != "" {
		if err := d.sendTelegram(ctx, m); err != nil {
			d.log.Error().Err(err).Str("task_id", m.TaskID).Msg("telegram delivery failed")
		}
	}
	for _, hook := range d.cfg.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			continue
		}
		if err := d.postWebhook(ctx, hook, m); err != nil {
			d.log.Error().Err(err).Str("url", hook.URL).Str("task_id", m.TaskID).Msg("webhook delivery failed")
		}
	}
}

func (d *Dispatcher) sendTelegram(ctx context.Context, m Message) error {
	text := formatTelegram(m)
	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", d.cfg.TelegramToken)
	form := url.Values{}
	form.Set("chat_id", d.cfg.TelegramChatID)
	form.Set("text", text)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", res.StatusCode)
	}
	return nil
}

func formatTelegram(m Message) string {
	switch m.Action {
	case ActionMention:
		return fmt.Sprintf("%s mentioned you on %q: %s", m.CommentAuthor, m.TaskTitle, m.CommentContent)
	case ActionAssignment:
		return fmt.Sprintf("%s assigned you %q", m.AssignedBy, m.TaskTitle)
	}
	return fmt.Sprintf("update on %q", m.TaskTitle)
}

func (d *Dispatcher) postWebhook(ctx context.Context, hook Webhook, m Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GroundControl-Event", m.Action)
	if strings.TrimSpace(hook.Secret) != "" {
		req.Header.Set("X-GroundControl-Secret", hook.Secret)
	}
	res, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("status %d", res.StatusCode)
	}
	return nil
}
