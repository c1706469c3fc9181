// Package sidecar models the per-document comment aggregate and the
// operations that mutate it in memory.
package sidecar

import (
	"time"

	"github.com/choplin/mdreview/internal/anchor"
)

// SchemaVersion is the only version tag readers accept.
const SchemaVersion = "1.0"

// Status is the lifecycle state of a comment thread.
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
	StatusStale    Status = "stale"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusResolved, StatusStale:
		return true
	default:
		return false
	}
}

// CommentEntry is one message in a thread.
type CommentEntry struct {
	ID        string     `json:"id"`
	Author    string     `json:"author"`
	Body      string     `json:"body"`
	Created   time.Time  `json:"created"`
	Edited    *time.Time `json:"edited,omitempty"`
	Reactions []string   `json:"reactions,omitempty"`
}

// CommentThread is an anchored conversation. Thread is never empty; the first
// entry belongs to the thread creator.
type CommentThread struct {
	ID      string          `json:"id"`
	Anchor  anchor.Anchor   `json:"anchor"`
	Status  Status          `json:"status"`
	IsDraft bool            `json:"isDraft"`
	Thread  []*CommentEntry `json:"thread"`
}

// File is the persisted aggregate of every thread attached to one document.
type File struct {
	Doc      string           `json:"doc"`
	Version  string           `json:"version"`
	Comments []*CommentThread `json:"comments"`
}

// NewFile returns an empty aggregate for doc.
func NewFile(doc string) *File {
	return &File{
		Doc:      doc,
		Version:  SchemaVersion,
		Comments: []*CommentThread{},
	}
}

// NewEntry carries the caller-supplied fields of a comment entry.
type NewEntry struct {
	Author  string
	Body    string
	Created time.Time
}

// NewThread carries the caller-supplied fields of a comment thread.
type NewThread struct {
	Anchor  anchor.Anchor
	Status  Status
	IsDraft bool
	Entries []NewEntry
}
