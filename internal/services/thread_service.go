// Package services wraps the sidecar mutators in read-modify-write cycles
// against a Store.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/choplin/mdreview/internal/anchor"
	"github.com/choplin/mdreview/internal/events"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/sidecar"
)

var (
	// ErrThreadNotFound is returned when a thread id was never issued for the document.
	ErrThreadNotFound = errors.New("thread not found")
	// ErrCommentNotFound is returned when a comment id or index does not exist in the thread.
	ErrCommentNotFound = errors.New("comment not found")
	// ErrInvalidThread is returned when a new thread has no entries or an unknown status.
	ErrInvalidThread = errors.New("invalid thread")
	// ErrListUnsupported is returned by Docs when the store cannot enumerate documents.
	ErrListUnsupported = errors.New("store cannot list documents")
)

// ThreadService exposes comment thread operations for one store.
type ThreadService struct {
	store  Store
	bus    *events.Bus
	origin string
	log    *slog.Logger

	mu    sync.Mutex
	locks map[string]*docLock
}

// docLock serializes updates to one document. refs counts holders and
// waiters; the entry is dropped when it reaches zero.
type docLock struct {
	mu   sync.Mutex
	refs int
}

// NewThreadService creates a ThreadService. bus and log may be nil.
func NewThreadService(store Store, bus *events.Bus, origin string, log *slog.Logger) *ThreadService {
	if log == nil {
		log = logger.Discard()
	}
	return &ThreadService{
		store:  store,
		bus:    bus,
		origin: origin,
		log:    log,
		locks:  make(map[string]*docLock),
	}
}

// Load returns doc's aggregate, or an empty one when nothing is stored yet.
func (s *ThreadService) Load(ctx context.Context, doc string) (*sidecar.File, error) {
	file, err := s.store.Read(ctx, doc)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return sidecar.NewFile(doc), nil
	}
	return file, nil
}

// Update runs fn against the current aggregate and writes it back when fn
// reports a change. Cycles on the same document are serialized within the
// process.
func (s *ThreadService) Update(ctx context.Context, doc string, fn func(*sidecar.File) (bool, error)) (*sidecar.File, error) {
	unlock := s.lock(doc)
	defer unlock()

	file, err := s.Load(ctx, doc)
	if err != nil {
		return nil, err
	}

	changed, err := fn(file)
	if err != nil {
		return nil, err
	}
	if !changed {
		return file, nil
	}

	if err := s.store.Write(ctx, doc, file, s.origin); err != nil {
		return nil, fmt.Errorf("save comments for %s: %w", doc, err)
	}
	s.log.Debug("sidecar written", "doc", doc, "threads", len(file.Comments), "origin", s.origin)

	if s.bus != nil {
		s.bus.Publish(events.Change{Doc: doc, Origin: s.origin, At: time.Now()})
	}
	return file, nil
}

// AddThread starts a new thread on doc.
func (s *ThreadService) AddThread(ctx context.Context, doc string, input sidecar.NewThread) (*sidecar.CommentThread, error) {
	var thread *sidecar.CommentThread
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		t, ok := f.AddThread(input)
		if !ok {
			return false, ErrInvalidThread
		}
		thread = t
		return true, nil
	})
	return thread, err
}

// Reply appends an entry to an existing thread.
func (s *ThreadService) Reply(ctx context.Context, doc, threadID string, input sidecar.NewEntry) (*sidecar.CommentEntry, error) {
	var entry *sidecar.CommentEntry
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		e, ok := f.AddReply(threadID, input)
		if !ok {
			return false, ErrThreadNotFound
		}
		entry = e
		return true, nil
	})
	return entry, err
}

// Edit replaces a comment body.
func (s *ThreadService) Edit(ctx context.Context, doc, threadID, commentID, body string) (*sidecar.CommentEntry, error) {
	var entry *sidecar.CommentEntry
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if _, ok := f.Thread(threadID); !ok {
			return false, ErrThreadNotFound
		}
		e, ok := f.EditComment(threadID, commentID, body)
		if !ok {
			return false, ErrCommentNotFound
		}
		entry = e
		return true, nil
	})
	return entry, err
}

// DeleteThread removes a whole thread.
func (s *ThreadService) DeleteThread(ctx context.Context, doc, threadID string) error {
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if !f.DeleteThread(threadID) {
			return false, ErrThreadNotFound
		}
		return true, nil
	})
	return err
}

// DeleteComment removes the entry at index; deleting the only entry removes
// the thread.
func (s *ThreadService) DeleteComment(ctx context.Context, doc, threadID string, index int) error {
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if _, ok := f.Thread(threadID); !ok {
			return false, ErrThreadNotFound
		}
		if !f.DeleteComment(threadID, index) {
			return false, ErrCommentNotFound
		}
		return true, nil
	})
	return err
}

// DeleteCommentByID removes the entry with commentID.
func (s *ThreadService) DeleteCommentByID(ctx context.Context, doc, threadID, commentID string) error {
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if _, ok := f.Thread(threadID); !ok {
			return false, ErrThreadNotFound
		}
		if !f.DeleteCommentByID(threadID, commentID) {
			return false, ErrCommentNotFound
		}
		return true, nil
	})
	return err
}

// SetStatus changes a thread's status.
func (s *ThreadService) SetStatus(ctx context.Context, doc, threadID string, status sidecar.Status) error {
	if !status.Valid() {
		return fmt.Errorf("unknown status %q", status)
	}
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if !f.UpdateThreadStatus(threadID, status) {
			return false, ErrThreadNotFound
		}
		return true, nil
	})
	return err
}

// ToggleReaction adds or removes author's reaction on a comment.
func (s *ThreadService) ToggleReaction(ctx context.Context, doc, threadID, commentID, author string) (bool, error) {
	var added bool
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if _, ok := f.Thread(threadID); !ok {
			return false, ErrThreadNotFound
		}
		a, ok := f.ToggleReaction(threadID, commentID, author)
		if !ok {
			return false, ErrCommentNotFound
		}
		added = a
		return true, nil
	})
	return added, err
}

// Reparent moves a thread onto a new anchor and reopens it.
func (s *ThreadService) Reparent(ctx context.Context, doc, threadID string, a anchor.Anchor) error {
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		if !f.ReparentThread(threadID, a) {
			return false, ErrThreadNotFound
		}
		return true, nil
	})
	return err
}

// Drafts lists the threads with unpublished changes.
func (s *ThreadService) Drafts(ctx context.Context, doc string) ([]*sidecar.CommentThread, error) {
	file, err := s.Load(ctx, doc)
	if err != nil {
		return nil, err
	}
	return file.DraftThreads(), nil
}

// Publish clears every draft flag on doc and returns how many threads were drafts.
func (s *ThreadService) Publish(ctx context.Context, doc string) (int, error) {
	var count int
	_, err := s.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		count = len(f.DraftThreads())
		if count == 0 {
			return false, nil
		}
		f.MarkAllPublished()
		return true, nil
	})
	return count, err
}

// Docs lists documents that have stored comments.
func (s *ThreadService) Docs(ctx context.Context) ([]string, error) {
	lister, ok := s.store.(Lister)
	if !ok {
		return nil, ErrListUnsupported
	}
	return lister.Docs(ctx)
}

func (s *ThreadService) lock(doc string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[doc]
	if !ok {
		l = &docLock{}
		s.locks[doc] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, doc)
		}
		s.mu.Unlock()
	}
}
