package models

import "time"

type Author string

const (
	AuthorUser      Author = "user"
	AuthorAssistant Author = "assistant"
)

type Message struct {
	ID        string
	Content   string
	Author    Author
	Pending   bool // placeholder awaiting a reply
	CreatedAt time.Time
}
