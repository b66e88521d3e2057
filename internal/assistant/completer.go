// Package assistant produces completions for fix requests and chat
// messages. The default backend is a deterministic rule table behind a
// fixed delay; a Gemini backend can be configured in its place.
package assistant

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = models.LangTypeScript

// DefaultDelay is the simulated latency of the rule backend.
const DefaultDelay = time.Second

// Request is a single completion request.
type Request struct {
	Text        string
	Language    models.Language
	MaxTokens   int
	Temperature float32
}

func (r Request) withDefaults() Request {
	if r.Language == "" {
		r.Language = DefaultLanguage
	}
	return r
}

// Response is the outcome of a completion, as handed to callers. It is
// never returned together with an error.
type Response struct {
	Text         string
	IsError      bool
	ErrorMessage string
}

// Completer is a completion backend.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Simulated answers from the rule table after a fixed delay.
type Simulated struct {
	delay  time.Duration
	logger *zap.Logger
}

// NewSimulated returns a rule backend. A zero delay uses DefaultDelay and a
// negative delay disables it.
func NewSimulated(delay time.Duration, logger *zap.Logger) *Simulated {
	if delay == 0 {
		delay = DefaultDelay
	} else if delay < 0 {
		delay = 0
	}
	return &Simulated{delay: delay, logger: logging.OrNop(logger)}
}

// Complete waits out the delay, then returns the reply of the first
// matching rule. Identical requests always produce identical replies.
func (s *Simulated) Complete(ctx context.Context, req Request) (string, error) {
	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	req = req.withDefaults()
	rule := Classify(req)
	s.logger.Debug("completion classified",
		zap.String("rule", rule.Name),
		zap.String("language", string(req.Language)))
	return rule.Reply(req), nil
}
