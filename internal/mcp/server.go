package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/choplin/mdreview/internal/application"
	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/reconcile"
	"github.com/choplin/mdreview/internal/sidecar"
	"github.com/choplin/mdreview/internal/usecase"
)

// Server wraps the MCP server with review-specific tools
type Server struct {
	server *mcp.Server
	app    *application.App
}

// NewServer creates a new MCP server instance over app
func NewServer(app *application.App, version string) *Server {
	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    "mdreview",
		Version: version,
	}, nil)

	s := &Server{
		server: mcpServer,
		app:    app,
	}

	s.registerTools()

	return s
}

// Run starts the MCP server with stdio transport
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_sections",
		Description: "List the heading sections of a markdown document",
	}, s.handleSections)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_list",
		Description: "List comment threads on a markdown document with their anchor health",
	}, s.handleList)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_comment",
		Description: "Start a comment thread on a section, chosen by slug or by line number",
	}, s.handleComment)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_reply",
		Description: "Reply to an existing comment thread",
	}, s.handleReply)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_resolve",
		Description: "Resolve or reopen a comment thread",
	}, s.handleResolve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_reconcile",
		Description: "Mark threads stale or open again after the document changed",
	}, s.handleReconcile)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_orphans",
		Description: "List threads whose section no longer exists, with suggested replacement sections",
	}, s.handleOrphans)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "review_reparent",
		Description: "Move a thread onto a current section, either the suggested one or an explicit slug",
	}, s.handleReparent)
}

// Input/Output types for each tool

type DocInput struct {
	File string `json:"file" jsonschema:"Path to the markdown file, absolute or relative to the review root"`
}

type SectionOutput struct {
	Heading   string `json:"heading"`
	Slug      string `json:"slug"`
	Level     int    `json:"level"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

type SectionsOutput struct {
	Doc      string          `json:"doc"`
	Sections []SectionOutput `json:"sections"`
}

type CommentOutput struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Body      string   `json:"body"`
	Created   string   `json:"created"`
	Edited    string   `json:"edited,omitempty"`
	Reactions []string `json:"reactions,omitempty"`
}

type ThreadOutput struct {
	ID       string          `json:"id"`
	Section  string          `json:"section"`
	Status   string          `json:"status"`
	Health   string          `json:"health"`
	IsDraft  bool            `json:"isDraft"`
	Comments []CommentOutput `json:"comments"`
}

type ListOutput struct {
	Doc     string            `json:"doc"`
	Threads []ThreadOutput    `json:"threads"`
	Summary reconcile.Summary `json:"summary"`
}

type CommentInput struct {
	File    string `json:"file" jsonschema:"Path to the markdown file"`
	Body    string `json:"body" jsonschema:"Comment text"`
	Section string `json:"section,omitempty" jsonschema:"Slug of the section to comment on"`
	Line    *int   `json:"line,omitempty" jsonschema:"0-based line inside the section to comment on, used when section is empty"`
	Author  string `json:"author,omitempty" jsonschema:"Comment author (defaults to the configured author)"`
}

type ThreadRefOutput struct {
	Message  string `json:"message"`
	ThreadID string `json:"threadId"`
	Section  string `json:"section,omitempty"`
}

type ReplyInput struct {
	File     string `json:"file" jsonschema:"Path to the markdown file"`
	ThreadID string `json:"threadId" jsonschema:"Id of the thread to reply to"`
	Body     string `json:"body" jsonschema:"Reply text"`
	Author   string `json:"author,omitempty" jsonschema:"Reply author (defaults to the configured author)"`
}

type ReplyOutput struct {
	Message   string `json:"message"`
	CommentID string `json:"commentId"`
}

type ResolveInput struct {
	File     string `json:"file" jsonschema:"Path to the markdown file"`
	ThreadID string `json:"threadId" jsonschema:"Id of the thread"`
	Reopen   bool   `json:"reopen,omitempty" jsonschema:"Reopen the thread instead of resolving it"`
}

type MessageOutput struct {
	Message string `json:"message"`
}

type ReconcileInput struct {
	File   string `json:"file" jsonschema:"Path to the markdown file"`
	DryRun bool   `json:"dryRun,omitempty" jsonschema:"Report the updates without saving them"`
}

type ReconcileOutput struct {
	Updates []reconcile.StatusUpdate `json:"updates"`
	Applied int                      `json:"applied"`
}

type OrphanOutput struct {
	ThreadID  string `json:"threadId"`
	Section   string `json:"section"`
	Candidate string `json:"candidate,omitempty"`
}

type OrphansOutput struct {
	Orphans []OrphanOutput `json:"orphans"`
}

type ReparentInput struct {
	File     string `json:"file" jsonschema:"Path to the markdown file"`
	ThreadID string `json:"threadId" jsonschema:"Id of the thread to move"`
	Section  string `json:"section,omitempty" jsonschema:"Target section slug (defaults to the suggested candidate)"`
}

// Tool handlers

func (s *Server) handleSections(ctx context.Context, _ *mcp.CallToolRequest, input DocInput) (*mcp.CallToolResult, SectionsOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, SectionsOutput{}, err
	}
	// Agents usually edit the file between calls.
	s.app.Review.Invalidate(doc)

	sections, err := s.app.Review.Sections(ctx, doc)
	if err != nil {
		return nil, SectionsOutput{}, fmt.Errorf("failed to read sections: %w", err)
	}
	return nil, SectionsOutput{Doc: doc, Sections: toSectionOutputs(sections)}, nil
}

func (s *Server) handleList(ctx context.Context, _ *mcp.CallToolRequest, input DocInput) (*mcp.CallToolResult, ListOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, ListOutput{}, err
	}
	s.app.Review.Invalidate(doc)

	result, err := s.app.Review.List(ctx, doc)
	if err != nil {
		return nil, ListOutput{}, fmt.Errorf("failed to list threads: %w", err)
	}

	threads := make([]ThreadOutput, 0, len(result.Threads))
	for _, v := range result.Threads {
		threads = append(threads, toThreadOutput(v))
	}
	return nil, ListOutput{Doc: doc, Threads: threads, Summary: result.Summary}, nil
}

func (s *Server) handleComment(ctx context.Context, _ *mcp.CallToolRequest, input CommentInput) (*mcp.CallToolResult, ThreadRefOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, ThreadRefOutput{}, err
	}
	s.app.Review.Invalidate(doc)

	result, err := s.app.Review.Comment(ctx, usecase.CommentInput{
		Doc:     doc,
		Section: input.Section,
		Line:    input.Line,
		Author:  s.author(input.Author),
		Body:    input.Body,
	})
	if err != nil {
		return nil, ThreadRefOutput{}, fmt.Errorf("failed to add comment: %w", err)
	}
	return nil, ThreadRefOutput{
		Message:  fmt.Sprintf("Started thread on section '%s'", result.Section.Heading),
		ThreadID: result.Thread.ID,
		Section:  result.Section.Slug,
	}, nil
}

func (s *Server) handleReply(ctx context.Context, _ *mcp.CallToolRequest, input ReplyInput) (*mcp.CallToolResult, ReplyOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, ReplyOutput{}, err
	}

	entry, err := s.app.Threads.Reply(ctx, doc, input.ThreadID, sidecar.NewEntry{
		Author:  s.author(input.Author),
		Body:    input.Body,
		Created: time.Now().UTC(),
	})
	if err != nil {
		return nil, ReplyOutput{}, fmt.Errorf("failed to reply: %w", err)
	}
	return nil, ReplyOutput{Message: "Reply added", CommentID: entry.ID}, nil
}

func (s *Server) handleResolve(ctx context.Context, _ *mcp.CallToolRequest, input ResolveInput) (*mcp.CallToolResult, MessageOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, MessageOutput{}, err
	}

	status, verb := sidecar.StatusResolved, "Resolved"
	if input.Reopen {
		status, verb = sidecar.StatusOpen, "Reopened"
	}
	if err := s.app.Threads.SetStatus(ctx, doc, input.ThreadID, status); err != nil {
		return nil, MessageOutput{}, fmt.Errorf("failed to update thread: %w", err)
	}
	return nil, MessageOutput{Message: fmt.Sprintf("%s thread %s", verb, input.ThreadID)}, nil
}

func (s *Server) handleReconcile(ctx context.Context, _ *mcp.CallToolRequest, input ReconcileInput) (*mcp.CallToolResult, ReconcileOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, ReconcileOutput{}, err
	}
	s.app.Review.Invalidate(doc)

	result, err := s.app.Review.Reconcile(ctx, doc, input.DryRun)
	if err != nil {
		return nil, ReconcileOutput{}, fmt.Errorf("failed to reconcile: %w", err)
	}
	return nil, ReconcileOutput{Updates: result.Updates, Applied: result.Applied}, nil
}

func (s *Server) handleOrphans(ctx context.Context, _ *mcp.CallToolRequest, input DocInput) (*mcp.CallToolResult, OrphansOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, OrphansOutput{}, err
	}
	s.app.Review.Invalidate(doc)

	orphans, err := s.app.Review.Orphans(ctx, doc)
	if err != nil {
		return nil, OrphansOutput{}, fmt.Errorf("failed to find orphans: %w", err)
	}

	out := make([]OrphanOutput, 0, len(orphans))
	for _, o := range orphans {
		item := OrphanOutput{ThreadID: o.Thread.ID, Section: o.Thread.Anchor.SectionSlug}
		if o.HasCandidate {
			item.Candidate = o.Candidate.Slug
		}
		out = append(out, item)
	}
	return nil, OrphansOutput{Orphans: out}, nil
}

func (s *Server) handleReparent(ctx context.Context, _ *mcp.CallToolRequest, input ReparentInput) (*mcp.CallToolResult, ThreadRefOutput, error) {
	doc, err := s.resolve(input.File)
	if err != nil {
		return nil, ThreadRefOutput{}, err
	}
	s.app.Review.Invalidate(doc)

	section, err := s.app.Review.Reparent(ctx, usecase.ReparentInput{
		Doc:      doc,
		ThreadID: input.ThreadID,
		Section:  input.Section,
	})
	if errors.Is(err, usecase.ErrNoCandidate) {
		return nil, ThreadRefOutput{}, fmt.Errorf("thread %s has no suggested section; pass section explicitly", input.ThreadID)
	}
	if errors.Is(err, usecase.ErrNotOrphaned) {
		return nil, ThreadRefOutput{}, fmt.Errorf("thread %s is not orphaned; pass section to move it anyway", input.ThreadID)
	}
	if err != nil {
		return nil, ThreadRefOutput{}, fmt.Errorf("failed to reparent: %w", err)
	}
	return nil, ThreadRefOutput{
		Message:  fmt.Sprintf("Moved thread to section '%s'", section.Heading),
		ThreadID: input.ThreadID,
		Section:  section.Slug,
	}, nil
}

func (s *Server) resolve(file string) (string, error) {
	doc, err := s.app.Resolve(file)
	if err != nil {
		return "", fmt.Errorf("failed to resolve document: %w", err)
	}
	return doc, nil
}

func (s *Server) author(explicit string) string {
	if explicit != "" {
		return explicit
	}
	return s.app.Author
}

func toSectionOutputs(sections []markdown.Section) []SectionOutput {
	out := make([]SectionOutput, 0, len(sections))
	for _, sec := range sections {
		out = append(out, SectionOutput{
			Heading:   sec.Heading,
			Slug:      sec.Slug,
			Level:     sec.Level,
			StartLine: sec.StartLine,
			EndLine:   sec.EndLine,
		})
	}
	return out
}

func toThreadOutput(v usecase.ThreadView) ThreadOutput {
	comments := make([]CommentOutput, 0, len(v.Thread.Thread))
	for _, e := range v.Thread.Thread {
		c := CommentOutput{
			ID:        e.ID,
			Author:    e.Author,
			Body:      e.Body,
			Created:   e.Created.Format(time.RFC3339),
			Reactions: e.Reactions,
		}
		if e.Edited != nil {
			c.Edited = e.Edited.Format(time.RFC3339)
		}
		comments = append(comments, c)
	}
	return ThreadOutput{
		ID:       v.Thread.ID,
		Section:  v.Thread.Anchor.SectionSlug,
		Status:   string(v.Thread.Status),
		Health:   string(v.Health),
		IsDraft:  v.Thread.IsDraft,
		Comments: comments,
	}
}
