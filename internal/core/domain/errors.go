package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrConfigValidation = errors.New("invalid catalog configuration")
	ErrTransientStorage = errors.New("temporary storage failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// DuplicateBlockedError is returned when a block policy refuses an
// ingestion. It carries the competing document's identity so the caller can
// offer linking to the existing document instead of a re-upload.
type DuplicateBlockedError struct {
	ExistingDocumentID string       `json:"existing_document_id"`
	Verdict            DedupVerdict `json:"verdict"`
}

func (e *DuplicateBlockedError) Error() string {
	return fmt.Sprintf("duplicate of document %s (%s, score %.2f)", e.ExistingDocumentID, e.Verdict.Tier, e.Verdict.Score)
}

func (e *DuplicateBlockedError) Unwrap() error {
	return ErrConflict
}

// SoftDeleteBlockedError is returned when deleting a document would strand
// one or more contexts.
type SoftDeleteBlockedError struct {
	DocumentID string    `json:"document_id"`
	Blockers   []Blocker `json:"blockers"`
}

func (e *SoftDeleteBlockedError) Error() string {
	return fmt.Sprintf("soft delete of document %s blocked by %d context(s)", e.DocumentID, len(e.Blockers))
}

func (e *SoftDeleteBlockedError) Unwrap() error {
	return ErrConflict
}
