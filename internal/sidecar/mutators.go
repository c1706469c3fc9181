package sidecar

import (
	"slices"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/choplin/mdreview/internal/anchor"
)

var (
	newID = uuid.NewString
	now   = time.Now
)

// Thread returns the thread issued with id.
func (f *File) Thread(id string) (*CommentThread, bool) {
	i := f.threadIndex(id)
	if i < 0 {
		return nil, false
	}
	return f.Comments[i], true
}

// AddThread appends a thread and assigns ids to it and its entries. The
// returned id is the only valid handle for later operations. A thread with no
// entries is rejected.
func (f *File) AddThread(input NewThread) (*CommentThread, bool) {
	if len(input.Entries) == 0 {
		return nil, false
	}
	status := input.Status
	if status == "" {
		status = StatusOpen
	}
	if !status.Valid() {
		return nil, false
	}

	thread := &CommentThread{
		ID:      newID(),
		Anchor:  input.Anchor,
		Status:  status,
		IsDraft: input.IsDraft,
		Thread:  make([]*CommentEntry, 0, len(input.Entries)),
	}
	for _, e := range input.Entries {
		thread.Thread = append(thread.Thread, newEntry(e))
	}
	f.Comments = append(f.Comments, thread)
	return thread, true
}

// AddReply appends an entry to the thread and marks it as a draft.
func (f *File) AddReply(threadID string, input NewEntry) (*CommentEntry, bool) {
	thread, ok := f.Thread(threadID)
	if !ok {
		return nil, false
	}
	entry := newEntry(input)
	thread.Thread = append(thread.Thread, entry)
	thread.IsDraft = true
	return entry, true
}

// DeleteThread removes the thread.
func (f *File) DeleteThread(threadID string) bool {
	i := f.threadIndex(threadID)
	if i < 0 {
		return false
	}
	f.Comments = slices.Delete(f.Comments, i, i+1)
	return true
}

// DeleteComment removes the entry at index. Removing the last entry removes
// the whole thread.
func (f *File) DeleteComment(threadID string, index int) bool {
	thread, ok := f.Thread(threadID)
	if !ok {
		return false
	}
	if index < 0 || index >= len(thread.Thread) {
		return false
	}
	if len(thread.Thread) == 1 {
		return f.DeleteThread(threadID)
	}
	thread.Thread = slices.Delete(thread.Thread, index, index+1)
	thread.IsDraft = true
	return true
}

// DeleteCommentByID removes the entry with commentID.
func (f *File) DeleteCommentByID(threadID, commentID string) bool {
	thread, ok := f.Thread(threadID)
	if !ok {
		return false
	}
	i := entryIndex(thread, commentID)
	if i < 0 {
		return false
	}
	return f.DeleteComment(threadID, i)
}

// EditComment replaces the body of an entry and stamps its edit time.
func (f *File) EditComment(threadID, commentID, body string) (*CommentEntry, bool) {
	thread, entry, ok := f.entry(threadID, commentID)
	if !ok {
		return nil, false
	}
	edited := now().UTC()
	entry.Body = body
	entry.Edited = &edited
	thread.IsDraft = true
	return entry, true
}

// UpdateThreadStatus sets the thread status and marks it as a draft.
func (f *File) UpdateThreadStatus(threadID string, status Status) bool {
	if !status.Valid() {
		return false
	}
	thread, ok := f.Thread(threadID)
	if !ok {
		return false
	}
	thread.Status = status
	thread.IsDraft = true
	return true
}

// ToggleReaction adds author to the entry's reactions, or removes it when
// already present. added reports which of the two happened; ok is false when
// the thread or entry does not exist.
func (f *File) ToggleReaction(threadID, commentID, author string) (added, ok bool) {
	thread, entry, ok := f.entry(threadID, commentID)
	if !ok {
		return false, false
	}
	reactions := mapset.NewThreadUnsafeSet(entry.Reactions...)
	if reactions.Contains(author) {
		reactions.Remove(author)
	} else {
		reactions.Add(author)
		added = true
	}
	entry.Reactions = sortedReactions(reactions)
	thread.IsDraft = true
	return added, true
}

// DraftThreads returns the threads with unpublished changes.
func (f *File) DraftThreads() []*CommentThread {
	drafts := make([]*CommentThread, 0)
	for _, t := range f.Comments {
		if t.IsDraft {
			drafts = append(drafts, t)
		}
	}
	return drafts
}

// MarkAllPublished clears the draft flag on every thread.
func (f *File) MarkAllPublished() {
	for _, t := range f.Comments {
		t.IsDraft = false
	}
}

// ReparentThread moves the thread to a new anchor and reopens it.
func (f *File) ReparentThread(threadID string, a anchor.Anchor) bool {
	thread, ok := f.Thread(threadID)
	if !ok {
		return false
	}
	thread.Anchor = a
	thread.Status = StatusOpen
	thread.IsDraft = true
	return true
}

func (f *File) threadIndex(id string) int {
	return slices.IndexFunc(f.Comments, func(t *CommentThread) bool {
		return t.ID == id
	})
}

func (f *File) entry(threadID, commentID string) (*CommentThread, *CommentEntry, bool) {
	thread, ok := f.Thread(threadID)
	if !ok {
		return nil, nil, false
	}
	i := entryIndex(thread, commentID)
	if i < 0 {
		return nil, nil, false
	}
	return thread, thread.Thread[i], true
}

func entryIndex(thread *CommentThread, commentID string) int {
	return slices.IndexFunc(thread.Thread, func(e *CommentEntry) bool {
		return e.ID == commentID
	})
}

func newEntry(input NewEntry) *CommentEntry {
	created := input.Created
	if created.IsZero() {
		created = now().UTC()
	}
	return &CommentEntry{
		ID:      newID(),
		Author:  input.Author,
		Body:    input.Body,
		Created: created,
	}
}

func sortedReactions(set mapset.Set[string]) []string {
	if set.Cardinality() == 0 {
		return nil
	}
	out := set.ToSlice()
	slices.Sort(out)
	return out
}
