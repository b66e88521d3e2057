package models

// Suggestion is a replacement source proposed for a failing run.
type Suggestion struct {
	FixedSource  string `json:"fixed_source"`
	IsError      bool   `json:"is_error"`
	ErrorMessage string `json:"error_message,omitempty"`
}
