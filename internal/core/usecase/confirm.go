package usecase

import (
	"context"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// ConfirmType finalizes a draft whose classification did not auto-select,
// using the type the caller chose from the surfaced candidates.
func (c *IngestionCoordinator) ConfirmType(ctx context.Context, orgID, documentID, typeCode string) (*domain.IngestResult, error) {
	doc, err := c.repo.GetByID(ctx, orgID, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	if doc.Status != domain.StatusDraft {
		return nil, domain.WrapError(domain.ErrConflict, "confirm type",
			fmt.Errorf("document %s is %s, only drafts can be confirmed", documentID, doc.Status))
	}

	snap, err := c.catalog.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog snapshot: %w", err)
	}
	if _, ok := snap.ByCode(typeCode); !ok {
		return nil, domain.WrapError(domain.ErrValidation, "confirm type",
			fmt.Errorf("unknown type code %q", typeCode))
	}

	confidence := 0.0
	for _, alt := range doc.Alternatives {
		if alt.TypeCode == typeCode {
			confidence = alt.Confidence
			break
		}
	}

	doc.TypeCode = typeCode
	doc.Confidence = confidence
	classification := domain.ClassificationResult{
		Chosen:     &domain.ChosenType{TypeCode: typeCode, Confidence: confidence},
		Decision:   domain.DecisionConfirmTop,
		Candidates: doc.Alternatives,
	}
	if err := c.repo.SaveClassification(ctx, doc.ID, classification); err != nil {
		return nil, fmt.Errorf("save confirmed classification: %w", err)
	}

	links, err := c.finalize(ctx, doc, doc.Context)
	if err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return nil, err
	}

	return &domain.IngestResult{
		DocumentID: doc.ID,
		Status:     doc.Status,
		Decision:   classification.Decision,
		ChosenType: typeCode,
		Confidence: confidence,
		Links:      links,
	}, nil
}
