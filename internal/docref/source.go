package docref

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ErrDocumentNotFound is returned when a document has no text on disk.
var ErrDocumentNotFound = errors.New("document not found")

// Source retrieves the current full text of a document.
type Source interface {
	Text(ctx context.Context, doc string) (string, error)
}

// FileSource reads documents from a directory tree.
type FileSource struct {
	Root string
}

// NewFileSource creates a FileSource rooted at root.
func NewFileSource(root string) *FileSource {
	return &FileSource{Root: root}
}

// Text reads <root>/<doc>.
func (s *FileSource) Text(ctx context.Context, doc string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := Validate(doc); err != nil {
		return "", err
	}
	//nolint:gosec // G304: doc is validated to stay inside the root
	data, err := os.ReadFile(filepath.Join(s.Root, filepath.FromSlash(doc)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, doc)
		}
		return "", fmt.Errorf("read document %s: %w", doc, err)
	}
	return string(data), nil
}

// StaticSource serves fixed document text, keyed by identity.
type StaticSource map[string]string

// Text returns the stored text for doc.
func (s StaticSource) Text(_ context.Context, doc string) (string, error) {
	text, ok := s[doc]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDocumentNotFound, doc)
	}
	return text, nil
}
