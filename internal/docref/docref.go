// Package docref resolves markdown files to stable document identities and
// reads their text.
package docref

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/choplin/mdreview/internal/git"
)

// Ref names a document by its slash-separated path relative to Root.
type Ref struct {
	Root string
	ID   string
}

// Path returns the document's location on disk.
func (r Ref) Path() string {
	return filepath.Join(r.Root, filepath.FromSlash(r.ID))
}

// Options controls how Resolve picks the root directory.
type Options struct {
	Root       string // explicit root; skips git detection
	WorkingDir string // directory to detect git info from (empty = current dir)
}

// Resolve turns a file path into a Ref. The root is the explicit root, the
// enclosing git worktree, or the working directory, in that order.
func Resolve(file string, opts Options) (Ref, error) {
	if strings.TrimSpace(file) == "" {
		return Ref{}, errors.New("document path is required")
	}

	workingDir := opts.WorkingDir
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Ref{}, fmt.Errorf("resolve working directory: %w", err)
		}
		workingDir = wd
	}

	absFile := file
	if !filepath.IsAbs(absFile) {
		absFile = filepath.Join(workingDir, file)
	}

	root := opts.Root
	if root == "" {
		root = workingDir
		if info, err := git.GetGitInfo(filepath.Dir(absFile)); err == nil && info.IsGitRepo {
			root = info.Root
		}
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return Ref{}, fmt.Errorf("resolve root: %w", err)
	}

	rel, err := filepath.Rel(canonical(root), canonical(absFile))
	if err != nil {
		return Ref{}, fmt.Errorf("document %s is outside %s: %w", file, root, err)
	}

	ref := Ref{Root: root, ID: filepath.ToSlash(rel)}
	return ref, Validate(ref.ID)
}

// ResolveRoot returns the review root for the working directory: the explicit
// root, the enclosing git worktree, or the working directory itself.
func ResolveRoot(opts Options) (string, error) {
	if opts.Root != "" {
		return filepath.Abs(opts.Root)
	}
	workingDir := opts.WorkingDir
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
		workingDir = wd
	}
	if info, err := git.GetGitInfo(workingDir); err == nil && info.IsGitRepo {
		return info.Root, nil
	}
	return filepath.Abs(workingDir)
}

// Validate rejects identities that are empty, absolute or escape the root.
func Validate(id string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("document id is required")
	}
	if path.IsAbs(id) || filepath.IsAbs(id) {
		return fmt.Errorf("document id must be relative: %s", id)
	}
	clean := path.Clean(id)
	if clean != id || clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("document id must be a clean path inside the root: %s", id)
	}
	return nil
}

// canonical resolves symlinks where possible so paths under /tmp and
// /private/tmp compare equal.
func canonical(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	dir, base := filepath.Split(p)
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		return filepath.Join(resolved, base)
	}
	return p
}
