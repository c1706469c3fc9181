package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/choplin/mdreview/internal/anchor"
)

// ErrMalformed marks a payload that fails shape validation. Readers treat it
// exactly like a missing sidecar.
var ErrMalformed = errors.New("sidecar: malformed payload")

type rawFile struct {
	Doc      *string       `json:"doc"`
	Version  *string       `json:"version"`
	Comments *[]*rawThread `json:"comments"`
}

type rawThread struct {
	ID      *string      `json:"id"`
	Anchor  *rawAnchor   `json:"anchor"`
	Status  *string      `json:"status"`
	IsDraft *bool        `json:"isDraft"`
	Thread  *[]*rawEntry `json:"thread"`
}

type rawAnchor struct {
	SectionSlug *string `json:"sectionSlug"`
	ContentHash *string `json:"contentHash"`
	LineHint    *int    `json:"lineHint"`
}

type rawEntry struct {
	ID        *string    `json:"id"`
	Author    *string    `json:"author"`
	Body      *string    `json:"body"`
	Created   *time.Time `json:"created"`
	Edited    *time.Time `json:"edited"`
	Reactions []string   `json:"reactions"`
}

// Marshal renders the aggregate as indented JSON with a trailing newline.
func Marshal(f *File) ([]byte, error) {
	if f.Comments == nil {
		clone := *f
		clone.Comments = []*CommentThread{}
		f = &clone
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal sidecar: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal parses and validates a stored payload. Every validation failure
// wraps ErrMalformed.
func Unmarshal(data []byte) (*File, error) {
	var raw rawFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, malformed("invalid json: %v", err)
	}
	if raw.Doc == nil {
		return nil, malformed("doc must be a string")
	}
	if raw.Version == nil || *raw.Version != SchemaVersion {
		return nil, malformed("version must be %q", SchemaVersion)
	}
	if raw.Comments == nil {
		return nil, malformed("comments must be an array")
	}

	file := &File{
		Doc:      *raw.Doc,
		Version:  *raw.Version,
		Comments: make([]*CommentThread, 0, len(*raw.Comments)),
	}
	for i, rt := range *raw.Comments {
		thread, err := rt.toThread()
		if err != nil {
			return nil, fmt.Errorf("comments[%d]: %w", i, err)
		}
		file.Comments = append(file.Comments, thread)
	}
	return file, nil
}

func (rt *rawThread) toThread() (*CommentThread, error) {
	if rt == nil {
		return nil, malformed("thread must be an object")
	}
	if rt.ID == nil || *rt.ID == "" {
		return nil, malformed("thread id is required")
	}
	if rt.Status == nil || !Status(*rt.Status).Valid() {
		return nil, malformed("thread %s has an invalid status", *rt.ID)
	}
	a, err := rt.Anchor.toAnchor()
	if err != nil {
		return nil, err
	}
	if rt.Thread == nil || len(*rt.Thread) == 0 {
		return nil, malformed("thread %s has no entries", *rt.ID)
	}

	thread := &CommentThread{
		ID:     *rt.ID,
		Anchor: a,
		Status: Status(*rt.Status),
		Thread: make([]*CommentEntry, 0, len(*rt.Thread)),
	}
	if rt.IsDraft != nil {
		thread.IsDraft = *rt.IsDraft
	}
	for _, re := range *rt.Thread {
		entry, err := re.toEntry()
		if err != nil {
			return nil, fmt.Errorf("thread %s: %w", thread.ID, err)
		}
		thread.Thread = append(thread.Thread, entry)
	}
	return thread, nil
}

func (ra *rawAnchor) toAnchor() (anchor.Anchor, error) {
	if ra == nil || ra.SectionSlug == nil || ra.ContentHash == nil || ra.LineHint == nil {
		return anchor.Anchor{}, malformed("anchor requires sectionSlug, contentHash and lineHint")
	}
	return anchor.Anchor{
		SectionSlug: *ra.SectionSlug,
		ContentHash: *ra.ContentHash,
		LineHint:    *ra.LineHint,
	}, nil
}

func (re *rawEntry) toEntry() (*CommentEntry, error) {
	if re == nil || re.ID == nil || *re.ID == "" || re.Author == nil || re.Body == nil || re.Created == nil {
		return nil, malformed("entry requires id, author, body and created")
	}
	return &CommentEntry{
		ID:        *re.ID,
		Author:    *re.Author,
		Body:      *re.Body,
		Created:   *re.Created,
		Edited:    re.Edited,
		Reactions: sortedReactions(mapset.NewThreadUnsafeSet(re.Reactions...)),
	}, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
