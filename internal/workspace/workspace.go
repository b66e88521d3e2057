package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mpataki/codeplay/internal/models"
)

// ExportBaseName is the file name, without extension, of a downloaded snippet.
const ExportBaseName = "code"

// Workspace is the directory downloads are written into.
type Workspace struct {
	Path string
}

// Open returns the workspace rooted at dir, creating it if needed.
func Open(dir string) (*Workspace, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	return &Workspace{Path: abs}, nil
}

// FileName returns the download name for a snippet in lang.
func FileName(lang models.Language) string {
	return ExportBaseName + "." + lang.Extension()
}

// Export writes source verbatim to code.<ext>, replacing any previous
// download, and returns the written path.
func (w *Workspace) Export(lang models.Language, source string) (string, error) {
	path := filepath.Join(w.Path, FileName(lang))
	if err := WriteFile(path, source); err != nil {
		return "", err
	}
	return path, nil
}

// WriteFile replaces path with content through a temp file in the same
// directory, so readers see either the old file or the new one.
func WriteFile(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".code-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// Source is a snippet read from disk.
type Source struct {
	Path     string
	Language models.Language
	Text     string
}

// ReadSource loads a snippet file. The language comes from lang when set,
// otherwise from the file extension.
func ReadSource(path string, lang models.Language) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if lang == "" {
		lang = models.LanguageFromPath(path)
	}
	if lang == "" {
		return nil, fmt.Errorf("cannot tell the language of %s; pass --lang", path)
	}
	return &Source{Path: path, Language: lang, Text: string(data)}, nil
}
