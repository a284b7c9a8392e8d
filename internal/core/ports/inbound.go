package ports

import (
	"context"
	"io"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// FileUpload carries an incoming file for ingestion.
type FileUpload struct {
	Filename string
	MimeType string
	Body     io.Reader
}

// DocumentIngestor is the inbound contract for the synchronous upload flow.
type DocumentIngestor interface {
	Ingest(ctx context.Context, file FileUpload, ic domain.IngestionContext, period *domain.Period, policy domain.DuplicatePolicy) (*domain.IngestResult, error)
}

// DocumentStager is the inbound contract for the staging flow: store the
// file, create a draft, hand finalization to the worker.
type DocumentStager interface {
	Stage(ctx context.Context, file FileUpload, ic domain.IngestionContext, period *domain.Period, policy domain.DuplicatePolicy) (*domain.Document, error)
}

// DocumentFinalizer is the inbound contract for asynchronous finalization
// of staged drafts.
type DocumentFinalizer interface {
	FinalizeByID(ctx context.Context, documentID string) error
}

// TypeConfirmer completes a draft whose classification did not auto-select,
// with the type the caller picked from the surfaced candidates.
type TypeConfirmer interface {
	ConfirmType(ctx context.Context, orgID, documentID, typeCode string) (*domain.IngestResult, error)
}

// DocumentReader is the inbound read model for document state.
type DocumentReader interface {
	GetByID(ctx context.Context, orgID, id string) (*domain.Document, error)
	ListLinks(ctx context.Context, orgID, id string) ([]domain.DocumentLink, error)
}

// OrphanPolicy controls how softDelete treats contexts that would be
// stranded: block refuses, warn proceeds and reports.
type OrphanPolicy string

const (
	OrphanBlock OrphanPolicy = "block"
	OrphanWarn  OrphanPolicy = "warn"
)

// DocumentLifecycle is the inbound contract for lifecycle transitions
// beyond finalization.
type DocumentLifecycle interface {
	Discard(ctx context.Context, orgID, id string) error
	SoftDelete(ctx context.Context, orgID, id string, policy OrphanPolicy) ([]domain.Blocker, error)
	Restore(ctx context.Context, orgID, id string) (*domain.Document, error)
}
