// Package sandbox runs untrusted snippets inside embedded interpreters.
//
// Each Engine evaluates one source text in a fresh interpreter state and
// writes diagnostic output to the Sink it is handed. Engines keep no state
// between calls and are safe for concurrent use. The caller owns the
// context: engines stop evaluating when it is done.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	perrors "github.com/mpataki/codeplay/internal/errors"
)

// Channel identifies one of the two diagnostic streams of a run.
type Channel int

const (
	Log Channel = iota
	Error
)

func (c Channel) String() string {
	if c == Error {
		return "error"
	}
	return "log"
}

// Result is what an engine hands back after a clean evaluation.
type Result struct {
	// Value is the textual rendering of the value produced by the snippet.
	Value string
	// IsEmpty is true when the snippet produced no value.
	IsEmpty bool
}

// Engine evaluates source text with output captured by sink.
//
// Evaluation failures (syntax errors, runtime exceptions, forbidden
// imports) are returned as *errors.E with kind EvaluationFailure and the
// interpreter's message. When the context ends first the returned error
// wraps ctx.Err().
type Engine interface {
	Eval(ctx context.Context, source string, sink *Sink) (Result, error)
}

// ErrUnknownThrow marks a failure whose thrown value carries no message.
var ErrUnknownThrow = fmt.Errorf("thrown value has no message")

func evalFailure(msg string, cause error) error {
	return perrors.Wrap(perrors.EvaluationFailure, msg, cause)
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("evaluation interrupted: %w", ctx.Err())
}

// Sink collects the entries written to the log and error channels of a
// single run. Writes after Release are dropped so an interpreter that
// outlives its run cannot leak output into the next one.
type Sink struct {
	mu       sync.Mutex
	limit    int
	streams  [2]stream
	released bool
}

type stream struct {
	entries   []string
	partial   bytes.Buffer
	size      int
	truncated bool
}

// NewSink returns a sink that keeps at most maxBytes per channel.
// A non-positive maxBytes disables the cap.
func NewSink(maxBytes int) *Sink {
	return &Sink{limit: maxBytes}
}

// Emit appends one whole entry to ch.
func (s *Sink) Emit(ch Channel, entry string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	st := &s.streams[ch]
	s.flushPartial(st)
	s.add(st, entry)
}

// Writer returns an io.Writer that splits a byte stream into entries on
// newlines. It never returns a short write.
func (s *Sink) Writer(ch Channel) io.Writer {
	return channelWriter{sink: s, ch: ch}
}

type channelWriter struct {
	sink *Sink
	ch   Channel
}

func (w channelWriter) Write(p []byte) (int, error) {
	s := w.sink
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return len(p), nil // discard
	}

	st := &s.streams[w.ch]
	st.partial.Write(p)
	for {
		line, err := st.partial.ReadString('\n')
		if err != nil {
			// No newline yet: keep the remainder for the next write.
			st.partial.Reset()
			st.partial.WriteString(line)
			break
		}
		s.add(st, line[:len(line)-1])
	}
	if s.limit > 0 && st.size+st.partial.Len() > s.limit {
		st.partial.Reset()
		st.truncated = true
	}
	return len(p), nil
}

func (s *Sink) add(st *stream, entry string) {
	if s.limit > 0 && st.size+len(entry) > s.limit {
		st.truncated = true
		return
	}
	st.size += len(entry)
	st.entries = append(st.entries, entry)
}

func (s *Sink) flushPartial(st *stream) {
	if st.partial.Len() == 0 {
		return
	}
	line := st.partial.String()
	st.partial.Reset()
	s.add(st, line)
}

// Release flushes unterminated lines and closes the sink. It is safe to
// call more than once.
func (s *Sink) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	for i := range s.streams {
		s.flushPartial(&s.streams[i])
	}
	s.released = true
}

// Released reports whether Release has been called.
func (s *Sink) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Entries returns a copy of the entries captured on ch.
func (s *Sink) Entries(ch Channel) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.streams[ch].entries))
	copy(out, s.streams[ch].entries)
	return out
}

// Truncated reports whether output on ch was dropped by the size cap.
func (s *Sink) Truncated(ch Channel) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams[ch].truncated
}
