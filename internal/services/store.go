package services

import (
	"context"

	"github.com/choplin/mdreview/internal/sidecar"
)

// Store persists one sidecar aggregate per document identity. Read returns
// nil with no error when the aggregate is missing or malformed.
type Store interface {
	Read(ctx context.Context, doc string) (*sidecar.File, error)
	Write(ctx context.Context, doc string, file *sidecar.File, origin string) error
}

// Lister is implemented by stores that can enumerate their documents.
type Lister interface {
	Docs(ctx context.Context) ([]string, error)
}
