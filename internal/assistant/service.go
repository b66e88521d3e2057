package assistant

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"go.uber.org/zap"

	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
)

// Service wraps a Completer with the failure conversion callers rely on:
// neither Complete nor SuggestFix ever returns an error.
type Service struct {
	completer Completer
	logger    *zap.Logger
}

// NewService wraps completer.
func NewService(completer Completer, logger *zap.Logger) *Service {
	return &Service{completer: completer, logger: logging.OrNop(logger)}
}

// FixRequest builds the text sent when asking for a fix.
func FixRequest(lang models.Language, lastError, source string) string {
	if lang == "" {
		lang = DefaultLanguage
	}
	return fmt.Sprintf("%s %s code that has this error: \"%s\"\n\n%s", FixTrigger, lang, lastError, source)
}

// Complete runs one completion. Backend failures come back as an IsError
// response carrying the failure message.
func (s *Service) Complete(ctx context.Context, req Request) Response {
	req = req.withDefaults()
	text, err := s.complete(ctx, req)
	if err != nil {
		s.logger.Warn("completion failed",
			zap.String("language", string(req.Language)),
			zap.String("kind", string(perrors.KindOf(err))),
			zap.Error(err))
		return Response{IsError: true, ErrorMessage: failureMessage(err)}
	}
	return Response{Text: text}
}

func (s *Service) complete(ctx context.Context, req Request) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("completer panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = perrors.New(perrors.SuggestionFailure, fmt.Sprint(p))
		}
	}()
	return s.completer.Complete(ctx, req)
}

// SuggestFix asks for a corrected version of source. When the reply holds
// a fenced code block only its body is returned; otherwise the whole reply.
func (s *Service) SuggestFix(ctx context.Context, source, lastError string, lang models.Language) models.Suggestion {
	resp := s.Complete(ctx, Request{
		Text:     FixRequest(lang, lastError, source),
		Language: lang,
	})
	if resp.IsError {
		return models.Suggestion{IsError: true, ErrorMessage: resp.ErrorMessage}
	}

	fixed := resp.Text
	if code, ok := ExtractCode(resp.Text); ok {
		fixed = code
	}
	return models.Suggestion{FixedSource: fixed}
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, context.Canceled):
		return "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	}
	var e *perrors.E
	if errors.As(err, &e) && e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	return err.Error()
}
