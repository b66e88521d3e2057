package sandbox

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Go interprets Go snippets with yaegi. Only an allowlist of stdlib
// packages is visible to the snippet: no os, os/exec, net, syscall,
// unsafe or time.
type Go struct {
	allowedPackages map[string]bool
}

// NewGo creates a Go engine with the default package allowlist.
func NewGo() *Go {
	return &Go{
		allowedPackages: map[string]bool{
			"bytes":           true,
			"encoding/base64": true,
			"encoding/json":   true,
			"errors":          true,
			"fmt":             true,
			"math":            true,
			"regexp":          true,
			"sort":            true,
			"strconv":         true,
			"strings":         true,
			"unicode":         true,
			"unicode/utf8":    true,
		},
	}
}

// Eval interprets source. A full program (package main with func main)
// runs main; bare statements are evaluated in order and the value of the
// last expression is the result.
func (e *Go) Eval(ctx context.Context, source string, sink *Sink) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = evalFailure(fmt.Sprint(r), nil)
		}
	}()

	// Validate imports before execution
	if err := e.validateImports(source); err != nil {
		return Result{}, evalFailure(err.Error(), err)
	}

	i := interp.New(interp.Options{
		Stdout: sink.Writer(Log),
		Stderr: sink.Writer(Error),
	})
	if err := i.Use(e.symbols()); err != nil {
		return Result{}, fmt.Errorf("failed to load stdlib: %w", err)
	}

	value, err := i.EvalWithContext(ctx, source)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, interrupted(ctx)
		}
		return Result{}, evalFailure(err.Error(), err)
	}

	if !value.IsValid() || value.Kind() == reflect.Func || !value.CanInterface() {
		return Result{IsEmpty: true}, nil
	}
	v := value.Interface()
	if v == nil {
		return Result{IsEmpty: true}, nil
	}
	return Result{Value: fmt.Sprint(v)}, nil
}

// symbols returns the subset of yaegi's stdlib exports that the allowlist permits.
func (e *Go) symbols() interp.Exports {
	out := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		// Keys look like "encoding/json/json": import path plus package name
		idx := strings.LastIndex(key, "/")
		if idx < 0 {
			continue
		}
		if e.allowedPackages[key[:idx]] {
			out[key] = syms
		}
	}
	return out
}

// validateImports checks that the code only imports allowed packages.
func (e *Go) validateImports(code string) error {
	var imports []string

	inImportBlock := false
	for _, line := range strings.Split(code, "\n") {
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "import (") {
			inImportBlock = true
			continue
		}
		if inImportBlock && strings.HasPrefix(trimmed, ")") {
			inImportBlock = false
			continue
		}

		if inImportBlock {
			if trimmed != "" && !strings.HasPrefix(trimmed, "//") {
				imports = append(imports, importPath(trimmed))
			}
		} else if strings.HasPrefix(trimmed, "import ") {
			imports = append(imports, importPath(strings.TrimPrefix(trimmed, "import ")))
		}
	}

	var forbidden []string
	for _, pkg := range imports {
		if !e.allowedPackages[pkg] {
			forbidden = append(forbidden, pkg)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports: %s (allowed: %s)",
			strings.Join(forbidden, ", "), strings.Join(e.allowed(), ", "))
	}
	return nil
}

// importPath strips an optional alias and the quotes from an import declaration.
func importPath(decl string) string {
	decl = strings.TrimSpace(decl)
	i := strings.IndexByte(decl, '"')
	if i < 0 {
		return decl
	}
	rest := decl[i+1:]
	if j := strings.IndexByte(rest, '"'); j >= 0 {
		return rest[:j]
	}
	return rest
}

func (e *Go) allowed() []string {
	pkgs := make([]string, 0, len(e.allowedPackages))
	for pkg := range e.allowedPackages {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)
	return pkgs
}
