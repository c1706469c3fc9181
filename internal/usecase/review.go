// Package usecase combines document sections, anchors and stored threads into
// the review operations exposed by the CLI and the MCP server.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/choplin/mdreview/internal/anchor"
	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/reconcile"
	"github.com/choplin/mdreview/internal/services"
	"github.com/choplin/mdreview/internal/sidecar"
)

var (
	// ErrSectionNotFound is returned when no current section matches the requested slug or line.
	ErrSectionNotFound = errors.New("section not found")
	// ErrNoCandidate is returned when an orphaned thread has no automatic reparent candidate.
	ErrNoCandidate = errors.New("no reparent candidate")
	// ErrNotOrphaned is returned when automatic reparenting targets a thread whose section still resolves.
	ErrNotOrphaned = errors.New("thread is not orphaned")
)

type Review struct {
	source  docref.Source
	cache   *markdown.SectionCache
	threads *services.ThreadService
	log     *slog.Logger
}

func NewReview(source docref.Source, cache *markdown.SectionCache, threads *services.ThreadService, log *slog.Logger) *Review {
	if cache == nil {
		cache = markdown.NewSectionCache()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Review{
		source:  source,
		cache:   cache,
		threads: threads,
		log:     log,
	}
}

// Threads exposes the underlying thread service for plain thread edits.
func (u *Review) Threads() *services.ThreadService {
	return u.threads
}

// Sections returns doc's sections, parsing the document on a cache miss.
// Duplicate slugs are logged once per parse.
func (u *Review) Sections(ctx context.Context, doc string) ([]markdown.Section, error) {
	if sections, ok := u.cache.Get(doc); ok {
		return sections, nil
	}
	text, err := u.source.Text(ctx, doc)
	if err != nil {
		return nil, err
	}
	sections := u.cache.Put(doc, text)
	if dups := anchor.DuplicateSlugs(sections); len(dups) > 0 {
		u.log.Warn("duplicate section slugs, anchors resolve to the first occurrence", "doc", doc, "slugs", dups)
	}
	return sections, nil
}

// Invalidate forgets doc's parsed sections so the next read re-parses it.
func (u *Review) Invalidate(doc string) {
	u.cache.Invalidate(doc)
}

type CommentInput struct {
	Doc     string
	Section string
	Line    *int
	Author  string
	Body    string
}

type CommentResult struct {
	Thread  *sidecar.CommentThread
	Section markdown.Section
}

// Comment opens a draft thread on the section named by slug, or on the
// section containing Line when no slug is given.
func (u *Review) Comment(ctx context.Context, input CommentInput) (*CommentResult, error) {
	sections, err := u.Sections(ctx, input.Doc)
	if err != nil {
		return nil, err
	}

	var (
		section markdown.Section
		ok      bool
	)
	switch {
	case input.Section != "":
		section, ok = anchor.FindSectionBySlug(sections, input.Section)
	case input.Line != nil:
		section, ok = anchor.FindSectionContainingLine(sections, *input.Line)
	default:
		return nil, errors.New("a section slug or line is required")
	}
	if !ok {
		return nil, ErrSectionNotFound
	}

	thread, err := u.threads.AddThread(ctx, input.Doc, sidecar.NewThread{
		Anchor:  anchor.Create(section),
		Status:  sidecar.StatusOpen,
		IsDraft: true,
		Entries: []sidecar.NewEntry{{
			Author:  input.Author,
			Body:    input.Body,
			Created: time.Now().UTC(),
		}},
	})
	if err != nil {
		return nil, err
	}
	return &CommentResult{Thread: thread, Section: section}, nil
}

// ThreadView pairs a thread with its anchor health. Section is nil for
// orphaned threads.
type ThreadView struct {
	Thread  *sidecar.CommentThread
	Health  reconcile.Health
	Section *markdown.Section
}

type ListResult struct {
	Threads []ThreadView
	Summary reconcile.Summary
}

// List returns every thread on doc with its current anchor health.
func (u *Review) List(ctx context.Context, doc string) (*ListResult, error) {
	sections, err := u.Sections(ctx, doc)
	if err != nil {
		return nil, err
	}
	file, err := u.threads.Load(ctx, doc)
	if err != nil {
		return nil, err
	}

	views := make([]ThreadView, 0, len(file.Comments))
	for _, t := range file.Comments {
		view := ThreadView{Thread: t, Health: reconcile.Classify(sections, t)}
		if match, ok := anchor.FindAnchoredSection(sections, t.Anchor); ok {
			section := match.Section
			view.Section = &section
		}
		views = append(views, view)
	}
	return &ListResult{Threads: views, Summary: reconcile.Summarize(sections, file.Comments)}, nil
}

type ReconcileResult struct {
	Updates []reconcile.StatusUpdate `json:"updates"`
	Applied int                      `json:"applied"`
}

// Reconcile detects open/stale transitions for doc and, unless dryRun is set,
// writes them back.
func (u *Review) Reconcile(ctx context.Context, doc string, dryRun bool) (*ReconcileResult, error) {
	sections, err := u.Sections(ctx, doc)
	if err != nil {
		return nil, err
	}

	if dryRun {
		file, err := u.threads.Load(ctx, doc)
		if err != nil {
			return nil, err
		}
		return &ReconcileResult{Updates: reconcile.DetectStatusUpdates(sections, file.Comments)}, nil
	}

	result := &ReconcileResult{}
	_, err = u.threads.Update(ctx, doc, func(f *sidecar.File) (bool, error) {
		result.Updates = reconcile.DetectStatusUpdates(sections, f.Comments)
		result.Applied = reconcile.Apply(f, result.Updates)
		return result.Applied > 0, nil
	})
	if err != nil {
		return nil, err
	}
	if result.Applied > 0 {
		u.log.Info("reconciled threads", "doc", doc, "updated", result.Applied)
	}
	return result, nil
}

// Orphans lists unresolved threads whose section slug is gone, with the
// suggested replacement section when one exists.
func (u *Review) Orphans(ctx context.Context, doc string) ([]reconcile.Orphan, error) {
	sections, err := u.Sections(ctx, doc)
	if err != nil {
		return nil, err
	}
	file, err := u.threads.Load(ctx, doc)
	if err != nil {
		return nil, err
	}
	return reconcile.Orphans(sections, file.Comments), nil
}

type ReparentInput struct {
	Doc      string
	ThreadID string
	// Section selects the target explicitly; empty means use the automatic
	// candidate, which is only offered for orphaned threads.
	Section string
}

// Reparent re-anchors a thread onto a current section and reopens it.
func (u *Review) Reparent(ctx context.Context, input ReparentInput) (*markdown.Section, error) {
	sections, err := u.Sections(ctx, input.Doc)
	if err != nil {
		return nil, err
	}

	var target markdown.Section
	_, err = u.threads.Update(ctx, input.Doc, func(f *sidecar.File) (bool, error) {
		thread, ok := f.Thread(input.ThreadID)
		if !ok {
			return false, services.ErrThreadNotFound
		}

		if input.Section != "" {
			target, ok = anchor.FindSectionBySlug(sections, input.Section)
			if !ok {
				return false, fmt.Errorf("%w: %s", ErrSectionNotFound, input.Section)
			}
		} else {
			if reconcile.Classify(sections, thread) != reconcile.HealthOrphaned {
				return false, ErrNotOrphaned
			}
			target, ok = reconcile.FindReparentCandidate(sections, thread.Anchor)
			if !ok {
				return false, ErrNoCandidate
			}
		}

		return f.ReparentThread(thread.ID, anchor.Create(target)), nil
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}
