package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/choplin/mdreview/internal/markdown"
	"github.com/choplin/mdreview/internal/reconcile"
	"github.com/choplin/mdreview/internal/sidecar"
	"github.com/choplin/mdreview/internal/usecase"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatTable, formatJSON:
		return nil
	default:
		return fmt.Errorf("invalid format: %s (valid values: table, json)", format)
	}
}

func outputJSON(cmd *cobra.Command, v any) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

// firstLine collapses a comment body to its first line for table cells.
func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	return t
}

type sectionRow struct {
	Heading     string `json:"heading"`
	Slug        string `json:"slug"`
	Level       int    `json:"level"`
	StartLine   int    `json:"startLine"`
	EndLine     int    `json:"endLine"`
	ContentHash string `json:"contentHash"`
}

func outputSections(cmd *cobra.Command, format string, sections []markdown.Section) error {
	if format == formatJSON {
		rows := make([]sectionRow, 0, len(sections))
		for _, s := range sections {
			rows = append(rows, sectionRow{
				Heading:     s.Heading,
				Slug:        s.Slug,
				Level:       s.Level,
				StartLine:   s.StartLine,
				EndLine:     s.EndLine,
				ContentHash: s.ContentHash,
			})
		}
		return outputJSON(cmd, rows)
	}

	headingWidth := getTerminalWidth() - 60
	if headingWidth < 20 {
		headingWidth = 20
	}

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Slug", "Heading", "Level", "Lines", "Hash"})
	for _, s := range sections {
		heading := strings.Repeat("  ", s.Level-1) + s.Heading
		t.AppendRow(table.Row{
			s.Slug,
			runewidth.Truncate(heading, headingWidth, "..."),
			s.Level,
			fmt.Sprintf("%d-%d", s.StartLine, s.EndLine),
			s.ContentHash,
		})
	}
	t.Render()
	return nil
}

type commentRow struct {
	ID        string   `json:"id"`
	Author    string   `json:"author"`
	Body      string   `json:"body"`
	Created   string   `json:"created"`
	Edited    string   `json:"edited,omitempty"`
	Reactions []string `json:"reactions,omitempty"`
}

type threadRow struct {
	ID       string       `json:"id"`
	Section  string       `json:"section"`
	Status   string       `json:"status"`
	Health   string       `json:"health,omitempty"`
	IsDraft  bool         `json:"isDraft"`
	Comments []commentRow `json:"comments"`
}

func toThreadRow(t *sidecar.CommentThread, health reconcile.Health) threadRow {
	comments := make([]commentRow, 0, len(t.Thread))
	for _, e := range t.Thread {
		c := commentRow{
			ID:        e.ID,
			Author:    e.Author,
			Body:      e.Body,
			Created:   e.Created.Format("2006-01-02T15:04:05Z07:00"),
			Reactions: e.Reactions,
		}
		if e.Edited != nil {
			c.Edited = e.Edited.Format("2006-01-02T15:04:05Z07:00")
		}
		comments = append(comments, c)
	}
	return threadRow{
		ID:       t.ID,
		Section:  t.Anchor.SectionSlug,
		Status:   string(t.Status),
		Health:   string(health),
		IsDraft:  t.IsDraft,
		Comments: comments,
	}
}

// outputThreads renders one row per comment, grouping entries under their thread.
func outputThreads(cmd *cobra.Command, format string, rows []threadRow) error {
	if format == formatJSON {
		return outputJSON(cmd, rows)
	}

	// id, section, status and author columns take roughly 90 cells with borders.
	bodyWidth := getTerminalWidth() - 90
	if bodyWidth < 20 {
		bodyWidth = 20
	}

	t := newTable(cmd)
	t.AppendHeader(table.Row{"Thread", "Section", "Status", "Author", "Comment"})
	for _, row := range rows {
		status := row.Status
		if row.Health != "" && row.Health != string(reconcile.HealthFresh) {
			status += " (" + row.Health + ")"
		}
		if row.IsDraft {
			status += "*"
		}
		for i, c := range row.Comments {
			id, section, st := "", "", ""
			if i == 0 {
				id, section, st = row.ID, row.Section, status
			}
			body := runewidth.Truncate(firstLine(c.Body), bodyWidth, "...")
			if len(c.Reactions) > 0 {
				body += fmt.Sprintf(" [+%d]", len(c.Reactions))
			}
			t.AppendRow(table.Row{id, section, st, c.Author, body})
		}
		t.AppendSeparator()
	}
	t.Render()
	return nil
}

func listRows(result *usecase.ListResult) []threadRow {
	rows := make([]threadRow, 0, len(result.Threads))
	for _, v := range result.Threads {
		rows = append(rows, toThreadRow(v.Thread, v.Health))
	}
	return rows
}
