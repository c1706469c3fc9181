// Package filesystem stores sidecar aggregates as JSON files next to a
// document tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/choplin/mdreview/internal/docref"
	"github.com/choplin/mdreview/internal/logger"
	"github.com/choplin/mdreview/internal/sidecar"
)

// Suffix is appended to a document identity to form its sidecar file name.
const Suffix = ".comments.json"

// Store keeps one JSON sidecar per document under Dir.
type Store struct {
	Dir string
	log *slog.Logger
}

// New creates a Store rooted at dir. A nil logger discards output.
func New(dir string, log *slog.Logger) *Store {
	if log == nil {
		log = logger.Discard()
	}
	return &Store{Dir: dir, log: log}
}

// SidecarPath returns the file that holds doc's sidecar.
func (s *Store) SidecarPath(doc string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(doc)+Suffix)
}

// Read loads doc's sidecar. A missing or malformed file yields nil with no error.
func (s *Store) Read(ctx context.Context, doc string) (*sidecar.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := docref.Validate(doc); err != nil {
		return nil, err
	}

	path := s.SidecarPath(doc)
	//nolint:gosec // G304: path is derived from a validated document id
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read sidecar %s: %w", path, err)
	}

	file, err := sidecar.Unmarshal(data)
	if err != nil {
		s.log.Warn("ignoring malformed sidecar", "doc", doc, "path", path, "error", err)
		return nil, nil
	}
	return file, nil
}

// Write replaces doc's sidecar atomically by writing a temp file in the same
// directory and renaming it over the target. The origin tag is not persisted
// by this backend.
func (s *Store) Write(ctx context.Context, doc string, file *sidecar.File, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := docref.Validate(doc); err != nil {
		return err
	}

	data, err := sidecar.Marshal(file)
	if err != nil {
		return err
	}

	path := s.SidecarPath(doc)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp sidecar: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp sidecar: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp sidecar: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp sidecar: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("replace sidecar: %w", err)
	}
	return nil
}

// Delete removes doc's sidecar if it exists.
func (s *Store) Delete(_ context.Context, doc string) error {
	if err := docref.Validate(doc); err != nil {
		return err
	}
	path := s.SidecarPath(doc)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete sidecar: %w", err)
	}
	return nil
}

// Docs lists every document identity that has a sidecar, sorted.
func (s *Store) Docs(ctx context.Context) ([]string, error) {
	docs := make([]string, 0)
	if _, err := os.Stat(s.Dir); errors.Is(err, fs.ErrNotExist) {
		return docs, nil
	}

	err := filepath.WalkDir(s.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), Suffix) {
			return nil
		}
		rel, err := filepath.Rel(s.Dir, path)
		if err != nil {
			return err
		}
		docs = append(docs, strings.TrimSuffix(filepath.ToSlash(rel), Suffix))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list sidecars: %w", err)
	}
	sort.Strings(docs)
	return docs, nil
}
