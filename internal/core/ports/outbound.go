package ports

import (
	"context"
	"io"
	"time"

	"github.com/gestiloc/document-pipeline/internal/core/catalog"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, orgID, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveExtraction(ctx context.Context, id string, textHash, textPreview string) error
	SaveClassification(ctx context.Context, id string, res domain.ClassificationResult) error
	// Finalize moves a draft to active and persists its link set in the
	// same transaction, so no caller ever observes a half-linked active
	// document.
	Finalize(ctx context.Context, doc *domain.Document, links []domain.DocumentLink) error
	// SoftDelete marks the document and its links deleted atomically.
	SoftDelete(ctx context.Context, id string) error
	// Restore reactivates a deleted document and its links, applying the
	// given primary-to-derived demotions in the same transaction.
	Restore(ctx context.Context, id string, demote []domain.LinkTarget) error
	// ListDedupCandidates returns non-deleted documents sharing at least
	// one of the given link targets within the organization.
	ListDedupCandidates(ctx context.Context, orgID string, targets []domain.LinkTarget) ([]domain.DedupCandidate, error)
}

// LinkRepository reads and maintains document links.
type LinkRepository interface {
	ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentLink, error)
	// FindPrimary returns the id of the non-deleted document currently
	// holding the primary role for the target, or "" when the slot is
	// free.
	FindPrimary(ctx context.Context, target domain.LinkTarget) (string, error)
	// CountLinkedDocuments counts non-deleted documents linked to the
	// target, excluding the given document.
	CountLinkedDocuments(ctx context.Context, target domain.LinkTarget, excludeDocumentID string) (int, error)
}

// EntityAuthorizer checks that a referenced entity exists and belongs to
// the caller's organization. Implemented by the persistence collaborator;
// authorization semantics are not re-implemented in the core.
type EntityAuthorizer interface {
	EntityBelongsTo(ctx context.Context, orgID string, target domain.LinkTarget) (bool, error)
}

// ObjectStorage stores raw file bytes and reports their content hash.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (fileHash string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// TextExtractor turns a stored document into normalized text.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error)
}

// MessageQueue carries staged-document events between api and worker and
// announces finalized documents to downstream collaborators. The staged
// handler receives the publish time so consumers can observe queue lag.
type MessageQueue interface {
	PublishDocumentStaged(ctx context.Context, documentID string) error
	SubscribeDocumentStaged(ctx context.Context, handler func(ctx context.Context, documentID string, stagedAt time.Time) error) error
	PublishDocumentFinalized(ctx context.Context, documentID string) error
}

// TypeDefinitionSource supplies raw catalog records; see catalog.Source.
type TypeDefinitionSource = catalog.Source

// CatalogProvider serves the current catalog snapshot.
type CatalogProvider interface {
	Snapshot(ctx context.Context) (*catalog.Snapshot, error)
}
