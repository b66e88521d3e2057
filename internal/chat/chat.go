// Package chat keeps the assistant conversation transcript.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mpataki/codeplay/internal/assistant"
	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
)

const (
	WelcomeMessage = "Hi there! I'm your AI coding assistant. How can I help you today?"
	FailureNotice  = "Failed to get AI response"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrReplyPending = errors.New("a reply is still pending")
	ErrTurnFinished = errors.New("turn already finished")
	ErrClosed       = errors.New("chat is closed")
)

type State int

const (
	StateComposing State = iota
	StateSent
	StateAwaitingReply
	StateReplied
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateAwaitingReply:
		return "awaiting_reply"
	case StateReplied:
		return "replied"
	case StateFailed:
		return "failed"
	default:
		return "composing"
	}
}

// Options configures a Manager.
type Options struct {
	Language models.Language
	Notifier notify.Notifier
	Logger   *zap.Logger
	// OnChange, if set, is called after every transcript change.
	OnChange func()
}

// Manager owns the transcript. At most one turn is outstanding at a time.
type Manager struct {
	svc      *assistant.Service
	lang     models.Language
	notifier notify.Notifier
	logger   *zap.Logger
	onChange func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	messages []models.Message
	pending  *Turn
	state    State
	closed   bool
}

// Turn is one user message and the reply it is waiting for.
type Turn struct {
	m             *Manager
	text          string
	placeholderID string

	once sync.Once
}

// New creates a transcript seeded with the welcome message.
func New(svc *assistant.Service, opts Options) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		svc:      svc,
		lang:     opts.Language,
		notifier: opts.Notifier,
		logger:   logging.OrNop(opts.Logger),
		onChange: opts.OnChange,
		ctx:      ctx,
		cancel:   cancel,
	}
	if m.lang == "" {
		m.lang = assistant.DefaultLanguage
	}
	if m.notifier == nil {
		m.notifier = notify.Discard
	}
	m.messages = []models.Message{newMessage(models.AuthorAssistant, WelcomeMessage, false)}
	return m
}

func newMessage(author models.Author, content string, pending bool) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Content:   content,
		Author:    author,
		Pending:   pending,
		CreatedAt: time.Now(),
	}
}

// Messages returns a copy of the transcript.
func (m *Manager) Messages() []models.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Message, len(m.messages))
	copy(out, m.messages)
	return out
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Pending reports whether a reply is outstanding.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Post appends the user message and a pending assistant placeholder.
// Blank text and text sent while a reply is pending are rejected without
// touching the transcript.
func (m *Manager) Post(text string) (*Turn, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	if m.pending != nil {
		m.mu.Unlock()
		return nil, ErrReplyPending
	}
	placeholder := newMessage(models.AuthorAssistant, "", true)
	m.messages = append(m.messages, newMessage(models.AuthorUser, text, false), placeholder)
	turn := &Turn{m: m, text: text, placeholderID: placeholder.ID}
	m.pending = turn
	m.state = StateSent
	m.mu.Unlock()

	m.changed()
	return turn, nil
}

// Await asks the assistant for a reply and settles the turn. On success the
// placeholder is replaced by the reply; on failure it is removed and the
// notifier is told. A turn can be awaited once.
func (t *Turn) Await(ctx context.Context) error {
	err := ErrTurnFinished
	t.once.Do(func() { err = t.await(ctx) })
	return err
}

func (t *Turn) await(ctx context.Context) error {
	m := t.m

	m.mu.Lock()
	if m.pending != t {
		m.mu.Unlock()
		return ErrClosed
	}
	m.state = StateAwaitingReply
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(m.ctx, cancel)
	defer stop()

	resp := m.svc.Complete(ctx, assistant.Request{Text: t.text, Language: m.lang})

	m.mu.Lock()
	if m.pending != t {
		// Closed while waiting; Close already removed the placeholder
		m.mu.Unlock()
		return ErrClosed
	}
	m.removeLocked(t.placeholderID)
	m.pending = nil

	switch {
	case !resp.IsError:
		m.messages = append(m.messages, newMessage(models.AuthorAssistant, resp.Text, false))
		m.state = StateReplied
		m.mu.Unlock()
		m.changed()
		return nil

	case ctx.Err() != nil:
		m.state = StateComposing
		m.mu.Unlock()
		m.changed()
		return ctx.Err()

	default:
		m.state = StateFailed
		m.mu.Unlock()
		m.logger.Warn("chat reply failed", zap.String("error", resp.ErrorMessage))
		m.notifier.Notify(notify.LevelError, FailureNotice)
		m.changed()
		return perrors.New(perrors.SuggestionFailure, resp.ErrorMessage)
	}
}

// Send posts text and waits for the reply.
func (m *Manager) Send(ctx context.Context, text string) error {
	turn, err := m.Post(text)
	if err != nil {
		return err
	}
	return turn.Await(ctx)
}

// Close cancels the outstanding turn, if any. Its result is discarded and
// its placeholder removed without a notification.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	if m.pending != nil {
		m.removeLocked(m.pending.placeholderID)
		m.pending = nil
		m.state = StateComposing
	}
	m.mu.Unlock()

	m.cancel()
	m.changed()
}

func (m *Manager) removeLocked(id string) {
	kept := m.messages[:0]
	for _, msg := range m.messages {
		if msg.ID != id {
			kept = append(kept, msg)
		}
	}
	m.messages = kept
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}
