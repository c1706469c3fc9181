package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupCLI(t *testing.T) (root, file string) {
	t.Helper()
	root = t.TempDir()
	t.Setenv("MDREVIEW_CONFIG", filepath.Join(root, "missing-config.yaml"))
	t.Setenv("MDREVIEW_BACKEND", "file")
	t.Setenv("MDREVIEW_AUTHOR", "tester")
	t.Setenv("MDREVIEW_LOG_LEVEL", "error")

	file = filepath.Join(root, "guide.md")
	text := "# Intro\nHello.\n\n## Usage\nRun it.\n"
	if err := os.WriteFile(file, []byte(text), 0o600); err != nil {
		t.Fatalf("write doc: %v", err)
	}
	return root, file
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	if err != nil {
		t.Fatalf("mdreview %v: %v", args, err)
	}
	return out
}

func TestCommentReplyList(t *testing.T) {
	root, file := setupCLI(t)

	threadID := strings.TrimSpace(mustRun(t, "--root", root, "comment", file, "--section", "usage", "-m", "add an example"))
	if threadID == "" {
		t.Fatalf("expected thread id on stdout")
	}

	if _, err := run(t, "looks good\n", "--root", root, "reply", file, threadID); err != nil {
		t.Fatalf("reply from stdin: %v", err)
	}

	out := mustRun(t, "--root", root, "list", file, "--format", "json")
	var listed struct {
		Doc     string      `json:"doc"`
		Threads []threadRow `json:"threads"`
	}
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if listed.Doc != "guide.md" || len(listed.Threads) != 1 {
		t.Fatalf("unexpected list %+v", listed)
	}
	comments := listed.Threads[0].Comments
	if len(comments) != 2 || comments[0].Author != "tester" || comments[1].Body != "looks good" {
		t.Fatalf("unexpected comments %+v", comments)
	}

	if _, err := os.Stat(filepath.Join(root, ".mdreview", "guide.md.comments.json")); err != nil {
		t.Fatalf("expected sidecar file: %v", err)
	}

	docs := mustRun(t, "--root", root, "list")
	if strings.TrimSpace(docs) != "guide.md" {
		t.Fatalf("unexpected docs output %q", docs)
	}
}

func TestResolveReconcileAndPublish(t *testing.T) {
	root, file := setupCLI(t)

	threadID := strings.TrimSpace(mustRun(t, "--root", root, "comment", file, "--line", "4", "-m", "x"))

	out := mustRun(t, "--root", root, "resolve", file, threadID)
	if !strings.Contains(out, "Resolved") {
		t.Fatalf("unexpected resolve output %q", out)
	}
	mustRun(t, "--root", root, "reopen", file, threadID)

	if err := os.WriteFile(file, []byte("# Intro\nHello.\n\n## Usage\nRun it twice.\n"), 0o600); err != nil {
		t.Fatalf("rewrite doc: %v", err)
	}

	out = mustRun(t, "--root", root, "reconcile", file, "--dry-run", "--format", "json")
	var dry struct {
		Updates []struct {
			NewStatus string `json:"newStatus"`
		} `json:"updates"`
		Applied int `json:"applied"`
	}
	if err := json.Unmarshal([]byte(out), &dry); err != nil {
		t.Fatalf("decode reconcile output: %v\n%s", err, out)
	}
	if len(dry.Updates) != 1 || dry.Updates[0].NewStatus != "stale" || dry.Applied != 0 {
		t.Fatalf("unexpected dry run %+v", dry)
	}

	out = mustRun(t, "--root", root, "reconcile", file)
	if !strings.Contains(out, "Updated 1 thread(s)") {
		t.Fatalf("unexpected reconcile output %q", out)
	}

	out = mustRun(t, "--root", root, "publish", file)
	if !strings.Contains(out, "Published 1 thread(s)") {
		t.Fatalf("unexpected publish output %q", out)
	}
	out = mustRun(t, "--root", root, "drafts", file)
	if !strings.Contains(out, "No drafts") {
		t.Fatalf("unexpected drafts output %q", out)
	}
}

func TestOrphansAndReparent(t *testing.T) {
	root, file := setupCLI(t)

	threadID := strings.TrimSpace(mustRun(t, "--root", root, "comment", file, "-s", "usage", "-m", "x"))

	if err := os.WriteFile(file, []byte("# Intro\nHello.\n\n## How To Use\nRun it.\n"), 0o600); err != nil {
		t.Fatalf("rewrite doc: %v", err)
	}

	out := mustRun(t, "--root", root, "orphans", file, "--format", "json")
	var orphans []orphanRow
	if err := json.Unmarshal([]byte(out), &orphans); err != nil {
		t.Fatalf("decode orphans: %v\n%s", err, out)
	}
	if len(orphans) != 1 || orphans[0].Candidate != "how-to-use" {
		t.Fatalf("unexpected orphans %+v", orphans)
	}

	out = mustRun(t, "--root", root, "reparent", file, threadID)
	if !strings.Contains(out, "how-to-use") {
		t.Fatalf("unexpected reparent output %q", out)
	}
}

func TestErrors(t *testing.T) {
	root, file := setupCLI(t)

	if _, err := run(t, "", "--root", root, "comment", file, "-m", "x"); err == nil {
		t.Fatalf("expected error without --section or --line")
	}
	if _, err := run(t, "", "--root", root, "comment", file, "-s", "nope", "-m", "x"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected section not found, got %v", err)
	}
	if _, err := run(t, "", "--root", root, "resolve", file, "missing"); err == nil || !strings.Contains(err.Error(), "thread 'missing' not found") {
		t.Fatalf("expected thread not found, got %v", err)
	}
	if _, err := run(t, "", "--root", root, "list", file, "--format", "xml"); err == nil {
		t.Fatalf("expected invalid format error")
	}
	if _, err := run(t, "", "--root", root, "--backend", "nosql", "list", file); err == nil {
		t.Fatalf("expected invalid backend error")
	}
}
