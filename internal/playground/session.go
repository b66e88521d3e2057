// Package playground holds the state of one editor: the snippet being
// edited, the last run report and the pending fix suggestion. It applies
// the busy guards and user notices around the runner and the assistant.
package playground

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/atotto/clipboard"
	"go.uber.org/zap"

	"github.com/mpataki/codeplay/internal/logging"
	"github.com/mpataki/codeplay/internal/models"
	"github.com/mpataki/codeplay/internal/notify"
)

// User notices.
const (
	NoticeCopied          = "Code copied to clipboard"
	NoticeCopyFailed      = "Failed to copy code"
	NoticeDownloaded      = "Code downloaded successfully"
	NoticeDownloadFailed  = "Failed to download code"
	NoticeSuggestionError = "An error occurred while communicating with the AI"
)

var (
	ErrBusy         = errors.New("operation already in progress")
	ErrNothingToFix = errors.New("last run did not fail")
	ErrNoSuggestion = errors.New("no suggestion to apply")
	ErrNoStore      = errors.New("snippet library is not configured")
	ErrNoDownloads  = errors.New("download directory is not configured")
	ErrClosed       = errors.New("session is closed")
)

// Replaced in tests.
var clipboardWriteAll = clipboard.WriteAll

type Runner interface {
	Run(ctx context.Context, lang models.Language, source string) models.Report
}

type Suggester interface {
	SuggestFix(ctx context.Context, source, lastError string, lang models.Language) models.Suggestion
}

type SnippetStore interface {
	SaveSnippet(sn *models.Snippet) error
	GetSnippet(name string) (*models.Snippet, error)
}

type Exporter interface {
	Export(lang models.Language, source string) (string, error)
}

type Options struct {
	Runner    Runner
	Suggester Suggester
	// Store and Downloads are optional.
	Store     SnippetStore
	Downloads Exporter
	Notifier  notify.Notifier
	Logger    *zap.Logger
	Language  models.Language
	Source    string
	// OnChange, if set, is called after every state change.
	OnChange func()
}

type Session struct {
	runner    Runner
	suggester Suggester
	store     SnippetStore
	downloads Exporter
	notifier  notify.Notifier
	logger    *zap.Logger
	onChange  func()

	ctx    context.Context
	cancel context.CancelFunc

	running    atomic.Bool
	suggesting atomic.Bool

	mu         sync.Mutex
	source     string
	lang       models.Language
	report     *models.Report
	suggestion *models.Suggestion
	closed     bool
}

func New(opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		runner:    opts.Runner,
		suggester: opts.Suggester,
		store:     opts.Store,
		downloads: opts.Downloads,
		notifier:  opts.Notifier,
		logger:    logging.OrNop(opts.Logger),
		onChange:  opts.OnChange,
		ctx:       ctx,
		cancel:    cancel,
		source:    opts.Source,
		lang:      opts.Language,
	}
	if s.notifier == nil {
		s.notifier = notify.Discard
	}
	if s.lang == "" {
		s.lang = models.LangJavaScript
	}
	return s
}

// bind derives a context that is also cancelled when the session closes.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (s *Session) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *Session) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Session) Language() models.Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lang
}

// Report returns the last run report, if there has been a run.
func (s *Session) Report() (models.Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.report == nil {
		return models.Report{}, false
	}
	return *s.report, true
}

// Suggestion returns the suggestion waiting to be applied or discarded.
func (s *Session) Suggestion() (models.Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.suggestion == nil {
		return models.Suggestion{}, false
	}
	return *s.suggestion, true
}

func (s *Session) Running() bool    { return s.running.Load() }
func (s *Session) Suggesting() bool { return s.suggesting.Load() }

func (s *Session) SetSource(source string) {
	s.mu.Lock()
	s.source = source
	s.mu.Unlock()
	s.changed()
}

func (s *Session) SetLanguage(lang models.Language) {
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
	s.changed()
}

// snapshot returns the current source and language, or ErrClosed.
func (s *Session) snapshot() (string, models.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", "", ErrClosed
	}
	return s.source, s.lang, nil
}

// Run evaluates the current source and replaces the report with the result.
// Only one run is outstanding at a time.
func (s *Session) Run(ctx context.Context) (models.Report, error) {
	source, lang, err := s.snapshot()
	if err != nil {
		return models.Report{}, err
	}
	if !s.running.CompareAndSwap(false, true) {
		return models.Report{}, ErrBusy
	}
	defer s.running.Store(false)
	s.changed()

	ctx, cancel := s.bind(ctx)
	defer cancel()
	report := s.runner.Run(ctx, lang, source)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding run result after close")
		return models.Report{}, ErrClosed
	}
	s.report = &report
	s.mu.Unlock()

	s.logger.Debug("run complete", zap.String("language", string(lang)), zap.Bool("is_error", report.IsError))
	s.changed()
	return report, nil
}

// RequestSuggestion asks for a fix of the failing source. A successful
// suggestion is held until applied or discarded; a failed one is reported
// to the user and leaves the session untouched.
func (s *Session) RequestSuggestion(ctx context.Context) (models.Suggestion, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return models.Suggestion{}, ErrClosed
	}
	if s.report == nil || !s.report.IsError {
		s.mu.Unlock()
		return models.Suggestion{}, ErrNothingToFix
	}
	source, lang, lastError := s.source, s.lang, s.report.Output
	s.mu.Unlock()

	if !s.suggesting.CompareAndSwap(false, true) {
		return models.Suggestion{}, ErrBusy
	}
	defer s.suggesting.Store(false)
	s.changed()

	ctx, cancel := s.bind(ctx)
	defer cancel()
	sug := s.suggester.SuggestFix(ctx, source, lastError, lang)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("discarding suggestion after close")
		return models.Suggestion{}, ErrClosed
	}
	if !sug.IsError {
		s.suggestion = &sug
	}
	s.mu.Unlock()

	if sug.IsError {
		s.logger.Warn("suggestion failed", zap.String("error", sug.ErrorMessage))
		s.notifier.Notify(notify.LevelError, NoticeSuggestionError)
	}
	s.changed()
	return sug, nil
}

// ApplySuggestion replaces the source with the pending suggestion.
func (s *Session) ApplySuggestion() error {
	s.mu.Lock()
	if s.suggestion == nil {
		s.mu.Unlock()
		return ErrNoSuggestion
	}
	s.source = s.suggestion.FixedSource
	s.suggestion = nil
	s.mu.Unlock()

	s.changed()
	return nil
}

// DiscardSuggestion drops the pending suggestion, if any.
func (s *Session) DiscardSuggestion() {
	s.mu.Lock()
	s.suggestion = nil
	s.mu.Unlock()
	s.changed()
}

// Copy puts the source on the system clipboard.
func (s *Session) Copy() error {
	if err := clipboardWriteAll(s.Source()); err != nil {
		s.logger.Warn("clipboard write failed", zap.Error(err))
		s.notifier.Notify(notify.LevelError, NoticeCopyFailed)
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	s.notifier.Notify(notify.LevelSuccess, NoticeCopied)
	return nil
}

// Download writes the source to the download directory and returns the path.
func (s *Session) Download() (string, error) {
	if s.downloads == nil {
		return "", ErrNoDownloads
	}
	source, lang, err := s.snapshot()
	if err != nil {
		return "", err
	}
	path, err := s.downloads.Export(lang, source)
	if err != nil {
		s.logger.Warn("download failed", zap.Error(err))
		s.notifier.Notify(notify.LevelError, NoticeDownloadFailed)
		return "", err
	}
	s.notifier.Notify(notify.LevelSuccess, NoticeDownloaded)
	return path, nil
}

// SaveSnippet stores the current source under name, replacing any snippet
// already saved with that name.
func (s *Session) SaveSnippet(name string) (*models.Snippet, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	source, lang, err := s.snapshot()
	if err != nil {
		return nil, err
	}
	sn := &models.Snippet{Name: name, Language: lang, Source: source}
	if err := s.store.SaveSnippet(sn); err != nil {
		s.notifier.Notify(notify.LevelError, fmt.Sprintf("Failed to save snippet %q", name))
		return nil, fmt.Errorf("failed to save snippet: %w", err)
	}
	s.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Snippet %q saved", sn.Name))
	return sn, nil
}

// LoadSnippet replaces the editor contents with a saved snippet.
func (s *Session) LoadSnippet(name string) error {
	if s.store == nil {
		return ErrNoStore
	}
	sn, err := s.store.GetSnippet(name)
	if err != nil {
		return fmt.Errorf("failed to load snippet %q: %w", name, err)
	}
	s.replace(sn.Language, sn.Source)
	return nil
}

// LoadPreset replaces the editor contents with a preset.
func (s *Session) LoadPreset(p *models.Preset) {
	s.replace(p.Language, p.Source)
}

func (s *Session) replace(lang models.Language, source string) {
	s.mu.Lock()
	s.lang = lang
	s.source = source
	s.report = nil
	s.suggestion = nil
	s.mu.Unlock()
	s.changed()
}

// Close cancels outstanding operations. Results that arrive afterwards are
// discarded.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}
