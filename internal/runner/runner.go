// Package runner turns a snippet into a single Report.
//
// The runner picks the sandbox engine for the snippet's language, hands it
// a fresh sink for the run, and classifies whatever came back: error
// output first, then log output, then the snippet's value. No failure
// leaves Run as an error; everything becomes an IsError report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/sandbox"
)

// Fixed report texts.
const (
	NoOutputMessage     = "Code executed successfully with no output."
	UnknownErrorMessage = "An unknown error occurred."
	TruncatedMarker     = "... output truncated"

	resultPrefix = "Result: "
	errorPrefix  = "Error: "
)

// Default limits.
const (
	DefaultDelay     = 500 * time.Millisecond
	DefaultTimeout   = 5 * time.Second
	DefaultMaxOutput = 64 << 10 // 64 KiB per channel
)

// Options configures a Runner. Zero values use the defaults, except Delay
// where a negative value disables the delay.
type Options struct {
	Delay     time.Duration
	Timeout   time.Duration
	MaxOutput int
	Logger    *zap.Logger
}

// Runner evaluates snippets. It holds no per-run state and is safe for
// concurrent use.
type Runner struct {
	engines   map[models.Language]sandbox.Engine
	delay     time.Duration
	timeout   time.Duration
	maxOutput int
	logger    *zap.Logger
}

// New creates a runner with the JavaScript, TypeScript, Lua and Go engines registered.
func New(opts Options) *Runner {
	r := &Runner{
		engines:   make(map[models.Language]sandbox.Engine),
		delay:     opts.Delay,
		timeout:   opts.Timeout,
		maxOutput: opts.MaxOutput,
		logger:    logging.OrNop(opts.Logger),
	}
	if r.delay == 0 {
		r.delay = DefaultDelay
	} else if r.delay < 0 {
		r.delay = 0
	}
	if r.timeout <= 0 {
		r.timeout = DefaultTimeout
	}
	if r.maxOutput <= 0 {
		r.maxOutput = DefaultMaxOutput
	}

	js := sandbox.NewJavaScript()
	r.Register(models.LangJavaScript, js)
	// TypeScript snippets run untranspiled, the same way the browser playground did
	r.Register(models.LangTypeScript, js)
	r.Register(models.LangLua, sandbox.NewLua())
	r.Register(models.LangGo, sandbox.NewGo())
	return r
}

// Register installs or replaces the engine for a language.
func (r *Runner) Register(lang models.Language, engine sandbox.Engine) {
	r.engines[lang] = engine
}

// Languages returns the languages that have an engine, sorted.
func (r *Runner) Languages() []models.Language {
	langs := make([]models.Language, 0, len(r.engines))
	for lang := range r.engines {
		langs = append(langs, lang)
	}
	sort.Slice(langs, func(i, j int) bool { return langs[i] < langs[j] })
	return langs
}

// Supports reports whether lang has an engine.
func (r *Runner) Supports(lang models.Language) bool {
	_, ok := r.engines[lang]
	return ok
}

// Run evaluates source and classifies the outcome. It always returns a report.
func (r *Runner) Run(ctx context.Context, lang models.Language, source string) models.Report {
	start := time.Now()
	log := r.logger.With(zap.String("language", string(lang)), zap.Int("source_bytes", len(source)))

	// Simulated scheduling latency before the snippet starts
	if r.delay > 0 {
		timer := time.NewTimer(r.delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			log.Debug("run cancelled before start", zap.Error(ctx.Err()))
			return r.failureReport(ctx.Err())
		}
	}

	engine, ok := r.engines[lang]
	if !ok {
		err := perrors.New(perrors.EvaluationFailure, fmt.Sprintf("no runtime available for %s", lang))
		log.Info("run rejected", zap.Error(err))
		return r.failureReport(err)
	}

	sink := sandbox.NewSink(r.maxOutput)
	defer sink.Release()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	res, err := r.eval(runCtx, engine, source, sink)
	sink.Release()

	var report models.Report
	if err != nil {
		report = r.failureReport(err)
	} else {
		report = classify(res, sink)
	}

	log.Debug("run finished",
		zap.Bool("is_error", report.IsError),
		zap.Duration("elapsed", time.Since(start)))
	return report
}

// eval calls the engine, converting a panic into an evaluation failure.
func (r *Runner) eval(ctx context.Context, engine sandbox.Engine, source string, sink *sandbox.Sink) (res sandbox.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("engine panicked", zap.Any("panic", p), zap.ByteString("stack", debug.Stack()))
			err = perrors.New(perrors.EvaluationFailure, fmt.Sprint(p))
		}
	}()
	return engine.Eval(ctx, source, sink)
}

// classify applies the output precedence: error channel, log channel,
// return value, fixed no-output message.
func classify(res sandbox.Result, sink *sandbox.Sink) models.Report {
	if entries := sink.Entries(sandbox.Error); len(entries) > 0 {
		return models.Report{Output: joinEntries(entries, sink.Truncated(sandbox.Error)), IsError: true}
	}
	if entries := sink.Entries(sandbox.Log); len(entries) > 0 {
		return models.Report{Output: joinEntries(entries, sink.Truncated(sandbox.Log))}
	}
	if !res.IsEmpty && res.Value != "" {
		return models.Report{Output: resultPrefix + res.Value}
	}
	return models.Report{Output: NoOutputMessage}
}

func joinEntries(entries []string, truncated bool) string {
	if truncated {
		entries = append(entries, TruncatedMarker)
	}
	return strings.Join(entries, "\n")
}

// failureReport renders an evaluation failure. Captured output is ignored.
func (r *Runner) failureReport(err error) models.Report {
	switch {
	case errors.Is(err, sandbox.ErrUnknownThrow):
		return models.Report{Output: UnknownErrorMessage, IsError: true}
	case errors.Is(err, context.DeadlineExceeded):
		return models.Report{Output: errorPrefix + fmt.Sprintf("execution timed out after %s", r.timeout), IsError: true}
	case errors.Is(err, context.Canceled):
		return models.Report{Output: errorPrefix + "execution cancelled", IsError: true}
	}

	var e *perrors.E
	if errors.As(err, &e) {
		return models.Report{Output: errorPrefix + e.Message, IsError: true}
	}
	return models.Report{Output: errorPrefix + err.Error(), IsError: true}
}
