package preset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpataki/codeplay/internal/models"
)

func writePreset(t *testing.T, dir, file, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0644))
}

func TestBuiltin(t *testing.T) {
	presets, err := Builtin()
	require.NoError(t, err)

	hello, ok := presets[DefaultName]
	require.True(t, ok)
	assert.Equal(t, models.LangJavaScript, hello.Language)
	assert.True(t, strings.HasPrefix(hello.Source, "// Write your code here..."))
	assert.True(t, strings.HasSuffix(hello.Source, "helloWorld();"))

	for _, name := range []string{"insights", "hello-lua", "hello-go"} {
		p, ok := presets[name]
		require.True(t, ok, name)
		require.NoError(t, Validate(p))
	}
}

func TestLoadAllOverrideOrder(t *testing.T) {
	root := t.TempDir()
	user := filepath.Join(root, "user")
	project := filepath.Join(root, "project")

	writePreset(t, user, "hello.yaml", "name: hello\nlanguage: lua\nsource: print('user')\n")
	writePreset(t, user, "mine.yml", "language: ts\nsource: return 1\n")
	writePreset(t, project, "hello.yaml", "name: hello\nlanguage: lua\nsource: print('project')\n")
	writePreset(t, project, "notes.txt", "ignored")

	presets, err := LoadAll([]string{user, project, filepath.Join(root, "missing")})
	require.NoError(t, err)

	assert.Equal(t, "print('project')", presets["hello"].Source)
	assert.Equal(t, models.LangLua, presets["hello"].Language)

	mine, ok := presets["mine"]
	require.True(t, ok, "name falls back to the file name")
	assert.Equal(t, models.LangTypeScript, mine.Language)

	_, ok = presets["insights"]
	assert.True(t, ok, "builtins survive")
}

func TestLoadAllRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	writePreset(t, dir, "empty.yaml", "name: empty\nlanguage: js\n")

	_, err := LoadAll([]string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must have source")
}

func TestLoadAllRejectsBadYAML(t *testing.T) {
	dir := t.TempDir()
	writePreset(t, dir, "bad.yaml", "name: [unclosed\n")

	_, err := LoadAll([]string{dir})
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.Error(t, Validate(&models.Preset{}))
	require.Error(t, Validate(&models.Preset{Name: "x", Source: "y"}))
	require.Error(t, Validate(&models.Preset{Name: "x", Language: models.LangLua, Source: "  "}))
	require.NoError(t, Validate(&models.Preset{Name: "x", Language: models.LangLua, Source: "return 1"}))
}

func TestSorted(t *testing.T) {
	presets := map[string]*models.Preset{
		"b": {Name: "b"},
		"a": {Name: "a"},
		"c": {Name: "c"},
	}
	var names []string
	for _, p := range Sorted(presets) {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"a", "b", "c"}, names)
}
