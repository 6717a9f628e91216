// Package models defines the domain types shared by storage and services.
package models

import "time"

// NoteMetadata is a lightweight representation returned by list operations.
type NoteMetadata struct {
	Path      string    `json:"path"`
	Checksum  string    `json:"checksum"`
	UpdatedAt time.Time `json:"updated_at"`
}

// InfoboxSummary describes one infobox block of a note as stored in the index.
type InfoboxSummary struct {
	Path       string `json:"path"`
	Ordinal    int    `json:"ordinal"`
	Line       int    `json:"line"`
	Title      string `json:"title"`
	FieldCount int    `json:"field_count"`
	// Error is set when the block does not parse.
	Error string `json:"error,omitempty"`
	// Text is the flattened field text fed to full-text search.
	Text string `json:"-"`
}
