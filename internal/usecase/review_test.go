package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/filesystem"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/reconcile"
	"github.com/choplin/mdreview/internal/services"
	"github.com/choplin/mdreview/internal/sidecar"
)

const guide = `# Intro
Welcome to the guide.

## Setup
Install the tool.

## Usage
Run it.
`

func setupReview(t *testing.T, source docref.StaticSource) *Review {
	t.Helper()
	store := filesystem.New(t.TempDir(), nil)
	threads := services.NewThreadService(store, nil, "test", nil)
	return NewReview(source, markdown.NewSectionCache(), threads, nil)
}

func TestCommentBySlugAndLine(t *testing.T) {
	source := docref.StaticSource{"guide.md": guide}
	review := setupReview(t, source)
	ctx := context.Background()

	bySlug, err := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "setup", Author: "alice", Body: "typo"})
	if err != nil {
		t.Fatalf("Comment by slug returned error: %v", err)
	}
	if bySlug.Thread.Anchor.SectionSlug != "setup" || bySlug.Thread.Anchor.LineHint != 3 {
		t.Fatalf("unexpected anchor %+v", bySlug.Thread.Anchor)
	}
	if !bySlug.Thread.IsDraft || bySlug.Thread.Status != sidecar.StatusOpen {
		t.Fatalf("new thread should be an open draft: %+v", bySlug.Thread)
	}

	line := 7
	byLine, err := review.Comment(ctx, CommentInput{Doc: "guide.md", Line: &line, Author: "alice", Body: "more"})
	if err != nil {
		t.Fatalf("Comment by line returned error: %v", err)
	}
	if byLine.Section.Slug != "usage" {
		t.Fatalf("expected usage section, got %s", byLine.Section.Slug)
	}

	if _, err := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "missing", Author: "a", Body: "b"}); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
	if _, err := review.Comment(ctx, CommentInput{Doc: "other.md", Section: "intro", Author: "a", Body: "b"}); !errors.Is(err, docref.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
}

func TestReconcileMarksStaleAndOrphaned(t *testing.T) {
	source := docref.StaticSource{"guide.md": guide}
	review := setupReview(t, source)
	ctx := context.Background()

	setup, _ := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "setup", Author: "a", Body: "x"})
	usage, _ := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "usage", Author: "a", Body: "y"})
	intro, _ := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "intro", Author: "a", Body: "z"})

	source["guide.md"] = `# Intro
Welcome to the guide.

## Installation
Install the tool.

## Usage
Run it twice.
`
	review.Invalidate("guide.md")

	dry, err := review.Reconcile(ctx, "guide.md", true)
	if err != nil {
		t.Fatalf("dry-run Reconcile returned error: %v", err)
	}
	if len(dry.Updates) != 2 || dry.Applied != 0 {
		t.Fatalf("unexpected dry run %+v", dry)
	}

	result, err := review.Reconcile(ctx, "guide.md", false)
	if err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}
	if result.Applied != 2 {
		t.Fatalf("expected 2 applied updates, got %d", result.Applied)
	}

	again, err := review.Reconcile(ctx, "guide.md", false)
	if err != nil || len(again.Updates) != 0 {
		t.Fatalf("second Reconcile should be a no-op: %+v, %v", again, err)
	}

	list, err := review.List(ctx, "guide.md")
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	health := make(map[string]reconcile.Health)
	for _, v := range list.Threads {
		health[v.Thread.ID] = v.Health
		if v.Health == reconcile.HealthOrphaned && v.Section != nil {
			t.Fatalf("orphaned view should have no section")
		}
	}
	if health[setup.Thread.ID] != reconcile.HealthOrphaned || health[usage.Thread.ID] != reconcile.HealthStale || health[intro.Thread.ID] != reconcile.HealthFresh {
		t.Fatalf("unexpected health %v", health)
	}
	if list.Summary.Orphaned != 1 || list.Summary.Stale != 1 || list.Summary.Fresh != 1 {
		t.Fatalf("unexpected summary %+v", list.Summary)
	}
}

func TestCachedSectionsUntilInvalidated(t *testing.T) {
	source := docref.StaticSource{"a.md": "# One\n"}
	review := setupReview(t, source)
	ctx := context.Background()

	if _, err := review.Sections(ctx, "a.md"); err != nil {
		t.Fatalf("Sections returned error: %v", err)
	}
	source["a.md"] = "# Two\n"

	sections, _ := review.Sections(ctx, "a.md")
	if sections[0].Slug != "one" {
		t.Fatalf("expected cached section, got %s", sections[0].Slug)
	}

	review.Invalidate("a.md")
	sections, _ = review.Sections(ctx, "a.md")
	if sections[0].Slug != "two" {
		t.Fatalf("expected re-parsed section, got %s", sections[0].Slug)
	}
}

func TestDuplicateSlugWarningOncePerParse(t *testing.T) {
	source := docref.StaticSource{"dup.md": "# Notes\none\n\n# Notes\ntwo\n"}
	var buf bytes.Buffer
	threads := services.NewThreadService(filesystem.New(t.TempDir(), nil), nil, "test", nil)
	review := NewReview(source, markdown.NewSectionCache(), threads, logger.New("warn", &buf))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := review.Sections(ctx, "dup.md"); err != nil {
			t.Fatalf("Sections returned error: %v", err)
		}
	}
	if n := strings.Count(buf.String(), "duplicate section slugs"); n != 1 {
		t.Fatalf("expected one warning across cached reads, got %d\n%s", n, buf.String())
	}

	review.Invalidate("dup.md")
	if _, err := review.Sections(ctx, "dup.md"); err != nil {
		t.Fatalf("Sections returned error: %v", err)
	}
	if n := strings.Count(buf.String(), "duplicate section slugs"); n != 2 {
		t.Fatalf("expected a second warning after re-parse, got %d", n)
	}
}

func TestOrphansAndReparent(t *testing.T) {
	source := docref.StaticSource{"guide.md": guide}
	review := setupReview(t, source)
	ctx := context.Background()

	setup, _ := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "setup", Author: "a", Body: "x"})

	// Heading renamed in place: line hint still matches.
	source["guide.md"] = `# Intro
Welcome to the guide.

## Installation
Install the tool.

## Usage
Run it.
`
	review.Invalidate("guide.md")
	if _, err := review.Reconcile(ctx, "guide.md", false); err != nil {
		t.Fatalf("Reconcile returned error: %v", err)
	}

	orphans, err := review.Orphans(ctx, "guide.md")
	if err != nil {
		t.Fatalf("Orphans returned error: %v", err)
	}
	if len(orphans) != 1 || !orphans[0].HasCandidate || orphans[0].Candidate.Slug != "installation" {
		t.Fatalf("unexpected orphans %+v", orphans)
	}

	target, err := review.Reparent(ctx, ReparentInput{Doc: "guide.md", ThreadID: setup.Thread.ID})
	if err != nil {
		t.Fatalf("Reparent returned error: %v", err)
	}
	if target.Slug != "installation" {
		t.Fatalf("expected installation, got %s", target.Slug)
	}

	file, _ := review.Threads().Load(ctx, "guide.md")
	thread, _ := file.Thread(setup.Thread.ID)
	if thread.Status != sidecar.StatusOpen || thread.Anchor.SectionSlug != "installation" {
		t.Fatalf("thread not reparented: %+v", thread)
	}

	orphans, _ = review.Orphans(ctx, "guide.md")
	if len(orphans) != 0 {
		t.Fatalf("expected no orphans after reparent, got %d", len(orphans))
	}
}

func TestReparentErrors(t *testing.T) {
	source := docref.StaticSource{"guide.md": guide}
	review := setupReview(t, source)
	ctx := context.Background()

	intro, _ := review.Comment(ctx, CommentInput{Doc: "guide.md", Section: "intro", Author: "a", Body: "x"})

	source["guide.md"] = "preamble\n\n# Totally New\nDifferent text.\n"
	review.Invalidate("guide.md")

	if _, err := review.Reparent(ctx, ReparentInput{Doc: "guide.md", ThreadID: intro.Thread.ID}); !errors.Is(err, ErrNoCandidate) {
		t.Fatalf("expected ErrNoCandidate, got %v", err)
	}
	if _, err := review.Reparent(ctx, ReparentInput{Doc: "guide.md", ThreadID: intro.Thread.ID, Section: "nope"}); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
	if _, err := review.Reparent(ctx, ReparentInput{Doc: "guide.md", ThreadID: "missing"}); !errors.Is(err, services.ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}

	target, err := review.Reparent(ctx, ReparentInput{Doc: "guide.md", ThreadID: intro.Thread.ID, Section: "totally-new"})
	if err != nil || target.Slug != "totally-new" {
		t.Fatalf("explicit Reparent = %+v, %v", target, err)
	}
}

func TestAutoReparentLeavesResolvedThreadsAlone(t *testing.T) {
	source := docref.StaticSource{"notes.md": "# A\nFirst.\n\n## B\nSecond.\n"}
	review := setupReview(t, source)
	ctx := context.Background()

	b, err := review.Comment(ctx, CommentInput{Doc: "notes.md", Section: "b", Author: "a", Body: "x"})
	if err != nil {
		t.Fatalf("Comment returned error: %v", err)
	}

	// A new section now starts where B used to; B keeps its slug and body.
	source["notes.md"] = "# A\nFirst.\n\n## New\nInserted.\n\n## B\nSecond.\n"
	review.Invalidate("notes.md")

	if _, err := review.Reparent(ctx, ReparentInput{Doc: "notes.md", ThreadID: b.Thread.ID}); !errors.Is(err, ErrNotOrphaned) {
		t.Fatalf("expected ErrNotOrphaned, got %v", err)
	}

	file, _ := review.Threads().Load(ctx, "notes.md")
	thread, _ := file.Thread(b.Thread.ID)
	if thread.Anchor.SectionSlug != "b" {
		t.Fatalf("thread moved to %s", thread.Anchor.SectionSlug)
	}

	target, err := review.Reparent(ctx, ReparentInput{Doc: "notes.md", ThreadID: b.Thread.ID, Section: "new"})
	if err != nil || target.Slug != "new" {
		t.Fatalf("explicit Reparent = %+v, %v", target, err)
	}
}
