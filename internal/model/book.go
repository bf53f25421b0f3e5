// Package model defines the persisted document types and the cycle state machine.
package model

type BookStatus string

const (
	BookStatusActive  BookStatus = "active"
	BookStatusRemoved BookStatus = "removed"
)

// Book is the canonical tracked entity, keyed by book ID.
// RankValue holds the raw scraped value, which may be a bare number or a
// thousands-separated string such as "1,234"; coercion to int happens at
// publication time.
type Book struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Author      string       `json:"author"`
	CoverURL    string       `json:"cover_url"`
	RankValue   any          `json:"rank_value"`
	SourceURL   string       `json:"source_url"`
	Status      BookStatus   `json:"status"`
	FirstSeen   string       `json:"first_seen"`
	LastChecked string       `json:"last_checked"`
	History     []RankSample `json:"history"`
}

// RankSample is one append-only history point.
type RankSample struct {
	Timestamp string `json:"timestamp"`
	RankValue any    `json:"rank_value"`
}

type BookDB struct {
	SchemaVersion int             `json:"schema_version"`
	FileType      string          `json:"file_type"`
	Books         map[string]Book `json:"books"`
}

func NewBookDB() *BookDB {
	return &BookDB{
		SchemaVersion: 1,
		FileType:      "books",
		Books:         map[string]Book{},
	}
}
