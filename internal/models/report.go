package models

// Report is the outcome of one script run. It lives only in the session
// that produced it and is never written to disk.
type Report struct {
	Output  string `json:"output"`
	IsError bool   `json:"is_error"`
}
