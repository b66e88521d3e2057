package assistant

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	perrors "github.com/mpataki/codeplay/internal/errors"
	"github.com/mpataki/codeplay/internal/models"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, whose view worker runs for the life of the process
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want string
	}{
		{"undefined reference", Request{Text: FixRequest(models.LangJavaScript, "ReferenceError: x is not defined", "x"), Language: models.LangJavaScript}, RuleUndefinedReference},
		{"not a function", Request{Text: FixRequest(models.LangTypeScript, "TypeError: f is not a function", "f()"), Language: models.LangTypeScript}, RuleUndefinedReference},
		{"syntax", Request{Text: FixRequest(models.LangJavaScript, "SyntaxError: Unexpected token ')'", "f())"), Language: models.LangJavaScript}, RuleSyntax},
		{"other script failure", Request{Text: FixRequest(models.LangJavaScript, "Error: bad", "throw 1"), Language: models.LangJavaScript}, RuleScript},
		{"python", Request{Text: FixRequest(models.LangPython, "NameError", "print(x)"), Language: models.LangPython}, RulePython},
		{"lua uses generic fix", Request{Text: FixRequest(models.LangLua, "attempt to call a nil value", "f()"), Language: models.LangLua}, RuleGenericFix},
		{"greeting", Request{Text: "hi", Language: models.LangTypeScript}, RuleGreeting},
		{"greeting wins over function", Request{Text: "hello, write a function", Language: models.LangTypeScript}, RuleGreeting},
		{"sample function", Request{Text: "can you write a function", Language: models.LangTypeScript}, RuleSampleFunction},
		{"clarify", Request{Text: "what now?", Language: models.LangTypeScript}, RuleClarify},
		{"matching is case sensitive", Request{Text: "HELLO", Language: models.LangTypeScript}, RuleClarify},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.req).Name)
		})
	}
}

func TestGenericFixUsesLanguageComment(t *testing.T) {
	cases := map[models.Language]string{
		models.LangLua: "-- Fixed lua code",
		models.LangGo:  "// Fixed go code",
		"ruby":         "# Fixed ruby code",
		"elixir":       "// Fixed elixir code",
	}
	for lang, want := range cases {
		req := Request{Text: FixRequest(lang, "boom", "x"), Language: lang}
		reply := Classify(req).Reply(req)
		code, ok := ExtractCode(reply)
		require.True(t, ok, lang)
		assert.True(t, strings.HasPrefix(code, want), "%s: %q", lang, code)
	}
}

func TestSampleFunctionReplyNamesLanguage(t *testing.T) {
	req := Request{Text: "show me some code", Language: models.LangJavaScript}
	reply := Classify(req).Reply(req)
	assert.Contains(t, reply, "Here's a sample javascript function that might help:")
	assert.Contains(t, reply, "```javascript\n")
}

func TestFixRequest(t *testing.T) {
	got := FixRequest(models.LangJavaScript, "ReferenceError: x is not defined", "console.log(x)")
	assert.Equal(t, "Fix the following javascript code that has this error: \"ReferenceError: x is not defined\"\n\nconsole.log(x)", got)
	assert.True(t, strings.HasPrefix(FixRequest("", "e", "s"), "Fix the following typescript code"))
}

func TestExtractCode(t *testing.T) {
	code, ok := ExtractCode("Here you go:\n\n```lua\nprint(1)\n\nprint(2)\n```\n\n```js\nignored()\n```")
	require.True(t, ok)
	assert.Equal(t, "print(1)\n\nprint(2)", code)

	code, ok = ExtractCode("```\n  indented()\n```")
	require.True(t, ok)
	assert.Equal(t, "  indented()", code)

	_, ok = ExtractCode("no code here")
	assert.False(t, ok)
}

func TestSimulatedIsDeterministic(t *testing.T) {
	s := NewSimulated(-1, nil)
	req := Request{Text: FixRequest(models.LangJavaScript, "Error: bad", "throw new Error('bad')"), Language: models.LangJavaScript}

	first, err := s.Complete(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Complete(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestSimulatedDefaultsLanguage(t *testing.T) {
	s := NewSimulated(-1, nil)
	reply, err := s.Complete(context.Background(), Request{Text: "write some code"})
	require.NoError(t, err)
	assert.Contains(t, reply, "sample typescript function")
}

func TestSimulatedHonoursCancellation(t *testing.T) {
	s := NewSimulated(time.Hour, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.Complete(ctx, Request{Text: "hi"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestSuggestFixReturnsFenceBody(t *testing.T) {
	svc := NewService(NewSimulated(-1, nil), nil)

	tests := []struct {
		name string
		lang models.Language
		err  string
		want string
	}{
		{"undefined reference", models.LangJavaScript, "ReferenceError: x is not defined", undefinedReferenceFix},
		{"syntax", models.LangTypeScript, "SyntaxError: Unexpected token", syntaxFix},
		{"script", models.LangJavaScript, "Error: bad", scriptFix},
		{"python", models.LangPython, "NameError: name 'x' is not defined", pythonFix},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.SuggestFix(context.Background(), "source", tt.err, tt.lang)
			require.False(t, got.IsError)
			assert.Equal(t, tt.want, got.FixedSource)
		})
	}
}

func TestSuggestFixErrorTextCanCarryTrigger(t *testing.T) {
	svc := NewService(NewSimulated(-1, nil), nil)
	got := svc.SuggestFix(context.Background(), "x", "Fix the following javascript code that has this error: x is not defined", models.LangJavaScript)
	require.False(t, got.IsError)
	assert.Equal(t, undefinedReferenceFix, got.FixedSource)
}

type stubCompleter struct {
	reply string
	err   error
	panic bool
}

func (s stubCompleter) Complete(context.Context, Request) (string, error) {
	if s.panic {
		panic("completer exploded")
	}
	return s.reply, s.err
}

func TestSuggestFixWithoutFenceUsesWholeReply(t *testing.T) {
	svc := NewService(stubCompleter{reply: "return 1"}, nil)
	got := svc.SuggestFix(context.Background(), "return 0", "nope", models.LangJavaScript)
	assert.Equal(t, models.Suggestion{FixedSource: "return 1"}, got)
}

func TestSuggestFixFailures(t *testing.T) {
	tests := []struct {
		name      string
		completer Completer
		want      string
	}{
		{"transport", stubCompleter{err: perrors.New(perrors.TransportFailure, "gemini request failed")}, "gemini request failed"},
		{"plain error", stubCompleter{err: assert.AnError}, assert.AnError.Error()},
		{"panic", stubCompleter{panic: true}, "completer exploded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewService(tt.completer, nil).SuggestFix(context.Background(), "x", "y", models.LangLua)
			require.True(t, got.IsError)
			assert.Empty(t, got.FixedSource)
			assert.Equal(t, tt.want, got.ErrorMessage)
		})
	}
}

func TestCompleteCancelled(t *testing.T) {
	svc := NewService(NewSimulated(time.Hour, nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := svc.Complete(ctx, Request{Text: "hi"})
	assert.Equal(t, Response{IsError: true, ErrorMessage: "request cancelled"}, resp)
}
