package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// FinalizeByID runs the classification and finalization pipeline for a
// staged draft. The worker calls this for every staged-document event; the
// document id comes from the queue, so lookup is not org-scoped.
func (c *IngestionCoordinator) FinalizeByID(ctx context.Context, documentID string) error {
	doc, err := c.repo.GetByID(ctx, "", documentID)
	if err != nil {
		return fmt.Errorf("fetch staged document: %w", err)
	}
	if doc.Status != domain.StatusDraft {
		// Redelivered event for an already finalized or discarded
		// document.
		slog.Info("staged_document_not_draft", "document_id", documentID, "status", doc.Status)
		return nil
	}

	extracted, err := c.extractor.Extract(ctx, doc)
	if err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return fmt.Errorf("extract text: %w", err)
	}
	applyExtraction(doc, extracted)
	if err := c.repo.SaveExtraction(ctx, doc.ID, doc.TextHash, doc.TextPreview); err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return fmt.Errorf("save extraction: %w", err)
	}

	classification, err := c.classify(ctx, doc, extracted)
	if err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return err
	}

	verdict, err := c.analyzeDuplicates(ctx, doc, extracted, classification)
	if err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return err
	}
	if verdict.Blocking(c.effectivePolicy(ctx, doc, classification)) {
		// A blocked staged draft stays draft; the conflict is recorded
		// for the caller to resolve, and the event is not redelivered.
		blocked := &domain.DuplicateBlockedError{
			ExistingDocumentID: verdict.MatchedDocumentID,
			Verdict:            verdict,
		}
		c.recordFailure(ctx, doc.ID, blocked)
		return nil
	}

	applyClassification(doc, classification)
	if err := c.repo.SaveClassification(ctx, doc.ID, classification); err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return fmt.Errorf("save classification: %w", err)
	}

	if classification.Chosen == nil {
		// Stays draft awaiting a manual type confirmation.
		return nil
	}

	if _, err := c.finalize(ctx, doc, doc.Context); err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return err
	}
	return nil
}
