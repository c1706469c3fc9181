package sidecar

import (
	"reflect"
	"testing"
	"time"

	"github.com/choplin/mdreview/internal/anchor"
)

var introAnchor = anchor.Anchor{SectionSlug: "intro", ContentHash: "0123456789abcdef", LineHint: 0}

func newThread(t *testing.T, f *File, bodies ...string) *CommentThread {
	t.Helper()
	entries := make([]NewEntry, 0, len(bodies))
	for _, b := range bodies {
		entries = append(entries, NewEntry{Author: "alice", Body: b})
	}
	thread, ok := f.AddThread(NewThread{Anchor: introAnchor, Entries: entries})
	if !ok {
		t.Fatalf("AddThread failed")
	}
	return thread
}

func TestAddThreadAssignsIDs(t *testing.T) {
	f := NewFile("docs/readme.md")
	thread := newThread(t, f, "first")

	if thread.ID == "" || thread.Thread[0].ID == "" {
		t.Fatalf("expected ids to be assigned: %#v", thread)
	}
	if thread.Status != StatusOpen {
		t.Fatalf("expected default status open, got %s", thread.Status)
	}
	if thread.Thread[0].Created.IsZero() {
		t.Fatalf("expected created timestamp to be set")
	}
	if len(f.Comments) != 1 {
		t.Fatalf("expected 1 thread, got %d", len(f.Comments))
	}
}

func TestAddThreadRejectsEmptyOrInvalid(t *testing.T) {
	f := NewFile("doc.md")
	if _, ok := f.AddThread(NewThread{Anchor: introAnchor}); ok {
		t.Fatalf("expected thread without entries to be rejected")
	}
	if _, ok := f.AddThread(NewThread{Anchor: introAnchor, Status: "bogus", Entries: []NewEntry{{Body: "x"}}}); ok {
		t.Fatalf("expected invalid status to be rejected")
	}
	if len(f.Comments) != 0 {
		t.Fatalf("expected no threads, got %d", len(f.Comments))
	}
}

func TestAddReplyIdentityContract(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "first")

	reply, ok := f.AddReply(thread.ID, NewEntry{Author: "bob", Body: "second"})
	if !ok {
		t.Fatalf("expected reply on issued id to succeed")
	}
	if reply.Body != "second" || !thread.IsDraft {
		t.Fatalf("unexpected reply state: %#v draft=%v", reply, thread.IsDraft)
	}

	for _, id := range []string{"", "local-id", thread.Thread[0].ID, thread.ID + "x"} {
		if _, ok := f.AddReply(id, NewEntry{Body: "nope"}); ok {
			t.Fatalf("expected reply on unknown id %q to fail", id)
		}
	}
	if len(thread.Thread) != 2 {
		t.Fatalf("expected exactly 2 entries, got %d", len(thread.Thread))
	}
}

func TestDeleteComment(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "a", "b", "c")

	for _, idx := range []int{-1, 3, 10} {
		if f.DeleteComment(thread.ID, idx) {
			t.Fatalf("expected out-of-range index %d to fail", idx)
		}
	}
	if f.DeleteComment("missing", 0) {
		t.Fatalf("expected unknown thread to fail")
	}

	if !f.DeleteComment(thread.ID, 1) {
		t.Fatalf("expected delete at index 1 to succeed")
	}
	if got := []string{thread.Thread[0].Body, thread.Thread[1].Body}; !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Fatalf("unexpected remaining bodies %v", got)
	}
	if !thread.IsDraft {
		t.Fatalf("expected delete to mark the thread as draft")
	}

	if !f.DeleteComment(thread.ID, 0) || !f.DeleteComment(thread.ID, 0) {
		t.Fatalf("expected remaining deletes to succeed")
	}
	if _, ok := f.Thread(thread.ID); ok {
		t.Fatalf("expected thread to be removed with its last entry")
	}
}

func TestDeleteCommentByID(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "only")

	if f.DeleteCommentByID(thread.ID, "missing") {
		t.Fatalf("expected unknown comment id to fail")
	}
	if !f.DeleteCommentByID(thread.ID, thread.Thread[0].ID) {
		t.Fatalf("expected delete by id to succeed")
	}
	if len(f.Comments) != 0 {
		t.Fatalf("expected thread to be removed")
	}
}

func TestDeleteThread(t *testing.T) {
	f := NewFile("doc.md")
	first := newThread(t, f, "one")
	second := newThread(t, f, "two")

	if !f.DeleteThread(first.ID) {
		t.Fatalf("expected delete to succeed")
	}
	if f.DeleteThread(first.ID) {
		t.Fatalf("expected second delete to fail")
	}
	if len(f.Comments) != 1 || f.Comments[0].ID != second.ID {
		t.Fatalf("unexpected remaining threads %#v", f.Comments)
	}
}

func TestEditCommentStampsEditTime(t *testing.T) {
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	restore := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = restore })

	f := NewFile("doc.md")
	thread := newThread(t, f, "typo")
	entryID := thread.Thread[0].ID

	entry, ok := f.EditComment(thread.ID, entryID, "fixed")
	if !ok {
		t.Fatalf("expected edit to succeed")
	}
	if entry.Body != "fixed" || entry.Edited == nil || !entry.Edited.Equal(fixed) {
		t.Fatalf("unexpected edited entry %#v", entry)
	}
	if _, ok := f.EditComment(thread.ID, "missing", "x"); ok {
		t.Fatalf("expected edit of unknown comment to fail")
	}
	if _, ok := f.EditComment("missing", entryID, "x"); ok {
		t.Fatalf("expected edit in unknown thread to fail")
	}
}

func TestUpdateThreadStatus(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "x")
	thread.IsDraft = false

	if !f.UpdateThreadStatus(thread.ID, StatusResolved) {
		t.Fatalf("expected status update to succeed")
	}
	if thread.Status != StatusResolved || !thread.IsDraft {
		t.Fatalf("unexpected thread state %#v", thread)
	}
	if f.UpdateThreadStatus(thread.ID, "closed") {
		t.Fatalf("expected unknown status to fail")
	}
	if f.UpdateThreadStatus("missing", StatusOpen) {
		t.Fatalf("expected unknown thread to fail")
	}
}

func TestToggleReaction(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "x")
	entryID := thread.Thread[0].ID

	added, ok := f.ToggleReaction(thread.ID, entryID, "bob")
	if !ok || !added {
		t.Fatalf("expected first toggle to add, got added=%v ok=%v", added, ok)
	}
	if _, ok := f.ToggleReaction(thread.ID, entryID, "carol"); !ok {
		t.Fatalf("expected toggle to succeed")
	}
	if got := thread.Thread[0].Reactions; !reflect.DeepEqual(got, []string{"bob", "carol"}) {
		t.Fatalf("unexpected reactions %v", got)
	}

	added, ok = f.ToggleReaction(thread.ID, entryID, "bob")
	if !ok || added {
		t.Fatalf("expected second toggle to remove, got added=%v ok=%v", added, ok)
	}
	if got := thread.Thread[0].Reactions; !reflect.DeepEqual(got, []string{"carol"}) {
		t.Fatalf("unexpected reactions %v", got)
	}

	if _, ok := f.ToggleReaction(thread.ID, "missing", "bob"); ok {
		t.Fatalf("expected toggle on unknown comment to fail")
	}
}

func TestDraftsAndPublish(t *testing.T) {
	f := NewFile("doc.md")
	published, _ := f.AddThread(NewThread{Anchor: introAnchor, Entries: []NewEntry{{Body: "a"}}})
	draft, _ := f.AddThread(NewThread{Anchor: introAnchor, IsDraft: true, Entries: []NewEntry{{Body: "b"}}})

	drafts := f.DraftThreads()
	if len(drafts) != 1 || drafts[0].ID != draft.ID {
		t.Fatalf("unexpected drafts %#v", drafts)
	}
	if published.IsDraft {
		t.Fatalf("expected first thread not to be a draft")
	}

	f.MarkAllPublished()
	if len(f.DraftThreads()) != 0 {
		t.Fatalf("expected no drafts after publishing")
	}
}

func TestReparentThreadReopens(t *testing.T) {
	f := NewFile("doc.md")
	thread := newThread(t, f, "x")
	thread.Status = StatusResolved
	thread.IsDraft = false

	target := anchor.Anchor{SectionSlug: "usage", ContentHash: "fedcba9876543210", LineHint: 12}
	if !f.ReparentThread(thread.ID, target) {
		t.Fatalf("expected reparent to succeed")
	}
	if thread.Anchor != target || thread.Status != StatusOpen || !thread.IsDraft {
		t.Fatalf("unexpected reparented thread %#v", thread)
	}
	if f.ReparentThread("missing", target) {
		t.Fatalf("expected reparent of unknown thread to fail")
	}
}
