// Package models defines the domain types for Ansuz.
package models

import "time"

// Note represents a stored rich-text note in the vault.
type Note struct {
	Path      string    `json:"path"`
	Content   []byte    `json:"-"`
	Title     string    `json:"title,omitempty"`
	Citations []string  `json:"citations,omitempty"`
	Checksum  string    `json:"checksum"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Citation represents a directed edge from a note to a bibliographic
// record, identified by one of the record's URIs.
type Citation struct {
	Source string `json:"source"`
	URI    string `json:"uri"`
}
