package models

import "time"

type Snippet struct {
	ID        int64
	Name      string
	Language  Language
	Source    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Preset struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Language    Language `yaml:"language"`
	Source      string   `yaml:"source"`
}
