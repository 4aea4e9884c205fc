package ports

import (
	"context"
	"io"
	"net/http"

	"sebsync/internal/core/domain/models"
)

// CatalogSource produces the remote catalog and serves entry downloads.
type CatalogSource interface {
	// FetchEntries returns the full catalog, deduplicated by identifier,
	// in feed order. Pagination is the source's concern.
	FetchEntries(ctx context.Context) ([]models.CatalogEntry, error)

	// DownloadEntry streams the entry's file bytes. The caller owns the
	// returned reader and must close it.
	DownloadEntry(ctx context.Context, entry models.CatalogEntry) (io.ReadCloser, error)
}

// LibraryScanner builds the local index by reading each file's embedded
// metadata. Read-only; unparsable files are skipped with a warning.
type LibraryScanner interface {
	Scan() (models.Index, error)
}

// Credentials applies authentication to an outgoing catalog request. How an
// account identifier becomes an authorization header is the implementation's
// business.
type Credentials interface {
	Apply(req *http.Request)
}
