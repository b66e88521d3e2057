package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	var r Recorder
	_, ok := r.Last()
	require.False(t, ok)

	r.Notify(LevelSuccess, "Code copied to clipboard")
	r.Notify(LevelError, "Failed to get AI response")

	last, ok := r.Last()
	require.True(t, ok)
	require.Equal(t, Notice{Level: LevelError, Message: "Failed to get AI response"}, last)
	require.Len(t, r.Notices(), 2)
}

func TestFuncAdapter(t *testing.T) {
	var got string
	var n Notifier = Func(func(_ Level, msg string) { got = msg })
	n.Notify(LevelInfo, "hello")
	require.Equal(t, "hello", got)
	require.Equal(t, "error", LevelError.String())
}
