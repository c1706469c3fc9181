// Package reconcile keeps comment thread statuses consistent with the current
// sections of a document and proposes new homes for orphaned threads.
package reconcile

import (
	"github.com/choplin/mdreview/internal/anchor"
	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/sidecar"
)

// StatusUpdate is a status transition detected for one thread.
type StatusUpdate struct {
	ThreadID  string         `json:"threadId"`
	OldStatus sidecar.Status `json:"oldStatus"`
	NewStatus sidecar.Status `json:"newStatus"`
}

// Health describes how a thread's anchor relates to the current sections.
type Health string

const (
	HealthFresh    Health = "fresh"
	HealthStale    Health = "stale"
	HealthOrphaned Health = "orphaned"
)

// Classify resolves the thread's anchor against sections.
func Classify(sections []markdown.Section, thread *sidecar.CommentThread) Health {
	match, ok := anchor.FindAnchoredSection(sections, thread.Anchor)
	switch {
	case !ok:
		return HealthOrphaned
	case match.IsStale:
		return HealthStale
	default:
		return HealthFresh
	}
}

// DetectStatusUpdates computes the open/stale transitions implied by the
// current sections. Resolved threads are never touched. The function does not
// modify threads; running it again after applying its output yields nothing.
func DetectStatusUpdates(sections []markdown.Section, threads []*sidecar.CommentThread) []StatusUpdate {
	updates := make([]StatusUpdate, 0)
	for _, t := range threads {
		if t.Status == sidecar.StatusResolved {
			continue
		}
		health := Classify(sections, t)
		switch {
		case health != HealthFresh && t.Status != sidecar.StatusStale:
			updates = append(updates, StatusUpdate{ThreadID: t.ID, OldStatus: t.Status, NewStatus: sidecar.StatusStale})
		case health == HealthFresh && t.Status == sidecar.StatusStale:
			updates = append(updates, StatusUpdate{ThreadID: t.ID, OldStatus: t.Status, NewStatus: sidecar.StatusOpen})
		}
	}
	return updates
}

// Apply writes updates into f and returns how many threads changed.
func Apply(f *sidecar.File, updates []StatusUpdate) int {
	applied := 0
	for _, u := range updates {
		if f.UpdateThreadStatus(u.ThreadID, u.NewStatus) {
			applied++
		}
	}
	return applied
}

// FindReparentCandidate proposes a section for an orphaned anchor: the
// section starting at the anchor's line hint, otherwise the first section with
// the same content hash.
func FindReparentCandidate(sections []markdown.Section, a anchor.Anchor) (markdown.Section, bool) {
	for _, s := range sections {
		if s.StartLine == a.LineHint {
			return s, true
		}
	}
	for _, s := range sections {
		if s.ContentHash == a.ContentHash {
			return s, true
		}
	}
	return markdown.Section{}, false
}

// Orphan pairs an orphaned thread with its reparent candidate, if any.
type Orphan struct {
	Thread       *sidecar.CommentThread
	Candidate    markdown.Section
	HasCandidate bool
}

// Orphans lists unresolved threads whose slug no longer exists.
func Orphans(sections []markdown.Section, threads []*sidecar.CommentThread) []Orphan {
	orphans := make([]Orphan, 0)
	for _, t := range threads {
		if t.Status == sidecar.StatusResolved || Classify(sections, t) != HealthOrphaned {
			continue
		}
		candidate, ok := FindReparentCandidate(sections, t.Anchor)
		orphans = append(orphans, Orphan{Thread: t, Candidate: candidate, HasCandidate: ok})
	}
	return orphans
}

// Summary counts thread health across a document.
type Summary struct {
	Fresh    int `json:"fresh"`
	Stale    int `json:"stale"`
	Orphaned int `json:"orphaned"`
	Resolved int `json:"resolved"`
	Drafts   int `json:"drafts"`
}

// Summarize classifies every thread. Resolved threads are counted apart.
func Summarize(sections []markdown.Section, threads []*sidecar.CommentThread) Summary {
	var s Summary
	for _, t := range threads {
		if t.IsDraft {
			s.Drafts++
		}
		if t.Status == sidecar.StatusResolved {
			s.Resolved++
			continue
		}
		switch Classify(sections, t) {
		case HealthFresh:
			s.Fresh++
		case HealthStale:
			s.Stale++
		case HealthOrphaned:
			s.Orphaned++
		}
	}
	return s
}
