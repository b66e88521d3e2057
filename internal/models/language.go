package models

import "strings"

type Language string

const (
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangLua        Language = "lua"
	LangGo         Language = "go"
	LangPython     Language = "python"
)

// ParseLanguage normalizes a user-supplied tag, accepting common aliases.
func ParseLanguage(s string) Language {
	switch tag := strings.ToLower(strings.TrimSpace(s)); tag {
	case "js", "javascript", "node":
		return LangJavaScript
	case "ts", "typescript":
		return LangTypeScript
	case "lua":
		return LangLua
	case "go", "golang":
		return LangGo
	case "py", "python":
		return LangPython
	default:
		return Language(tag)
	}
}

// Extension returns the file extension used when a snippet is downloaded.
func (l Language) Extension() string {
	switch l {
	case LangJavaScript:
		return "js"
	case LangTypeScript:
		return "ts"
	case LangLua:
		return "lua"
	case LangGo:
		return "go"
	case LangPython:
		return "py"
	case "":
		return "txt"
	default:
		return string(l)
	}
}

// LanguageFromPath guesses a language from a file name's extension.
func LanguageFromPath(path string) Language {
	idx := strings.LastIndex(path, ".")
	if idx < 0 || idx == len(path)-1 {
		return ""
	}
	return ParseLanguage(path[idx+1:])
}
