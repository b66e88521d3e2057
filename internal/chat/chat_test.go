package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mpataki/codeplay/internal/assistant"
	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker runs for the life of the process
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

// gatedCompleter blocks every request until release is closed.
type gatedCompleter struct {
	release chan struct{}
	reply   string
	err     error

	mu       sync.Mutex
	requests []assistant.Request
}

func newGated(reply string, err error) *gatedCompleter {
	return &gatedCompleter{release: make(chan struct{}), reply: reply, err: err}
}

func (g *gatedCompleter) Complete(ctx context.Context, req assistant.Request) (string, error) {
	g.mu.Lock()
	g.requests = append(g.requests, req)
	g.mu.Unlock()

	select {
	case <-g.release:
		return g.reply, g.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (g *gatedCompleter) Requests() []assistant.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]assistant.Request(nil), g.requests...)
}

func newManager(c assistant.Completer, rec *notify.Recorder) *Manager {
	return New(assistant.NewService(c, nil), Options{Notifier: rec})
}

func contents(msgs []models.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Content
	}
	return out
}

func TestStartsWithWelcome(t *testing.T) {
	m := newManager(assistant.NewSimulated(-1, nil), &notify.Recorder{})
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.AuthorAssistant, msgs[0].Author)
	assert.Equal(t, WelcomeMessage, msgs[0].Content)
	assert.Equal(t, StateComposing, m.State())
}

func TestGreetingReplacesPlaceholder(t *testing.T) {
	gate := newGated(assistant.GreetingReply, nil)
	m := newManager(gate, &notify.Recorder{})

	turn, err := m.Post("hi")
	require.NoError(t, err)
	assert.Equal(t, StateSent, m.State())

	msgs := m.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, models.AuthorUser, msgs[1].Author)
	assert.Equal(t, "hi", msgs[1].Content)
	assert.True(t, msgs[2].Pending)
	assert.Equal(t, models.AuthorAssistant, msgs[2].Author)

	close(gate.release)
	require.NoError(t, turn.Await(context.Background()))

	msgs = m.Messages()
	assert.Equal(t, []string{WelcomeMessage, "hi", assistant.GreetingReply}, contents(msgs))
	assert.False(t, msgs[2].Pending)
	assert.Equal(t, StateReplied, m.State())
	assert.False(t, m.Pending())
}

func TestSendUsesRawTextAndDefaultLanguage(t *testing.T) {
	gate := newGated("ok", nil)
	close(gate.release)
	m := newManager(gate, &notify.Recorder{})

	require.NoError(t, m.Send(context.Background(), "write a function"))
	reqs := gate.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "write a function", reqs[0].Text)
	assert.Equal(t, models.LangTypeScript, reqs[0].Language)
}

func TestSendWithRuleBackend(t *testing.T) {
	m := newManager(assistant.NewSimulated(-1, nil), &notify.Recorder{})
	require.NoError(t, m.Send(context.Background(), "hi"))
	assert.Equal(t, []string{WelcomeMessage, "hi", assistant.GreetingReply}, contents(m.Messages()))
}

func TestBlankInputIgnored(t *testing.T) {
	m := newManager(assistant.NewSimulated(-1, nil), &notify.Recorder{})
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := m.Post(text)
		require.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Len(t, m.Messages(), 1)
}

func TestSecondMessageRejectedWhilePending(t *testing.T) {
	gate := newGated("first reply", nil)
	m := newManager(gate, &notify.Recorder{})

	turn, err := m.Post("first")
	require.NoError(t, err)

	_, err = m.Post("second")
	require.ErrorIs(t, err, ErrReplyPending)
	assert.Len(t, m.Messages(), 3)

	close(gate.release)
	require.NoError(t, turn.Await(context.Background()))

	_, err = m.Post("second")
	require.NoError(t, err)
}

func TestFailureRemovesPlaceholderAndNotifies(t *testing.T) {
	gate := newGated("", perrors.New(perrors.TransportFailure, "unreachable"))
	close(gate.release)
	rec := &notify.Recorder{}
	m := newManager(gate, rec)

	err := m.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, perrors.Is(err, perrors.SuggestionFailure))

	assert.Equal(t, []string{WelcomeMessage, "hello"}, contents(m.Messages()))
	assert.Equal(t, StateFailed, m.State())
	assert.Equal(t, []notify.Notice{{Level: notify.LevelError, Message: FailureNotice}}, rec.Notices())
}

func TestAwaitOnce(t *testing.T) {
	gate := newGated("reply", nil)
	close(gate.release)
	m := newManager(gate, &notify.Recorder{})

	turn, err := m.Post("hello")
	require.NoError(t, err)
	require.NoError(t, turn.Await(context.Background()))
	require.ErrorIs(t, turn.Await(context.Background()), ErrTurnFinished)
	assert.Len(t, gate.Requests(), 1)
}

func TestCloseDiscardsOutstandingTurn(t *testing.T) {
	gate := newGated("too late", nil)
	rec := &notify.Recorder{}
	m := newManager(gate, rec)

	turn, err := m.Post("hello")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- turn.Await(context.Background()) }()
	require.Eventually(t, func() bool { return m.State() == StateAwaitingReply }, time.Second, 5*time.Millisecond)

	m.Close()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("await did not return after close")
	}

	assert.Equal(t, []string{WelcomeMessage, "hello"}, contents(m.Messages()))
	assert.Empty(t, rec.Notices())

	_, err = m.Post("again")
	require.True(t, errors.Is(err, ErrClosed))

	// Idempotent
	m.Close()
}

func TestCallerCancellationIsSilent(t *testing.T) {
	gate := newGated("never", nil)
	rec := &notify.Recorder{}
	m := newManager(gate, rec)

	ctx, cancel := context.WithCancel(context.Background())
	turn, err := m.Post("hello")
	require.NoError(t, err)
	cancel()

	require.ErrorIs(t, turn.Await(ctx), context.Canceled)
	assert.Equal(t, []string{WelcomeMessage, "hello"}, contents(m.Messages()))
	assert.Empty(t, rec.Notices())
	assert.False(t, m.Pending())
}

func TestOnChangeFires(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	m := New(assistant.NewService(assistant.NewSimulated(-1, nil), nil), Options{OnChange: func() {
		mu.Lock()
		calls++
		mu.Unlock()
	}})

	require.NoError(t, m.Send(context.Background(), "hi"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, calls)
}
