package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

func stageDraft(repo *repoFake, id string, ic domain.IngestionContext, fileHash string) {
	now := time.Now().UTC()
	repo.docs[id] = &domain.Document{
		ID:        id,
		OrgID:     ic.OrgID,
		Filename:  "quittance.pdf",
		MimeType:  "application/pdf",
		FileHash:  fileHash,
		Context:   ic,
		Status:    domain.StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFinalizeByIDCompletesStagedDraft(t *testing.T) {
	coordinator, deps := newCoordinator(t, "Quittance de loyer Janvier 2025")
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, "hash-1")

	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("FinalizeByID() error = %v", err)
	}

	stored := deps.repo.docs["doc-1"]
	if stored.Status != domain.StatusActive {
		t.Fatalf("expected active document, got %s", stored.Status)
	}
	if stored.TextHash == "" || stored.TextPreview == "" {
		t.Fatalf("expected persisted extraction, got hash=%q preview=%q", stored.TextHash, stored.TextPreview)
	}
	if stored.TypeCode != "RENT_RECEIPT" {
		t.Fatalf("expected RENT_RECEIPT, got %q", stored.TypeCode)
	}
	if len(deps.repo.finalized["doc-1"]) == 0 {
		t.Fatalf("expected links committed with finalization")
	}
	if len(deps.queue.finalized) != 1 {
		t.Fatalf("expected one finalized event, got %v", deps.queue.finalized)
	}
}

func TestFinalizeByIDIgnoresNonDrafts(t *testing.T) {
	coordinator, deps := newCoordinator(t, "quittance loyer")
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, "hash-1")
	deps.repo.docs["doc-1"].Status = domain.StatusActive

	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("redelivered event must be swallowed, got %v", err)
	}
	if len(deps.queue.finalized) != 0 {
		t.Fatalf("expected no finalized event on redelivery, got %v", deps.queue.finalized)
	}
}

func TestFinalizeByIDBlockedDuplicateStaysDraft(t *testing.T) {
	coordinator, deps := newCoordinator(t, "quittance loyer janvier")
	sum := sha256.Sum256([]byte("same-bytes"))
	fileHash := hex.EncodeToString(sum[:])
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, fileHash)
	deps.repo.docs["doc-1"].Policy = domain.PolicyBlock
	deps.repo.candidates = []domain.DedupCandidate{{
		DocumentID: "existing-1",
		FileHash:   fileHash,
		TypeCode:   "RENT_RECEIPT",
	}}

	// A blocked staged document is a terminal outcome for the event, not a
	// redeliverable failure.
	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("FinalizeByID() error = %v", err)
	}

	stored := deps.repo.docs["doc-1"]
	if stored.Status != domain.StatusDraft {
		t.Fatalf("expected draft, got %s", stored.Status)
	}
	if stored.Error == "" {
		t.Fatalf("expected recorded conflict on the draft")
	}
	if len(deps.queue.finalized) != 0 {
		t.Fatalf("expected no finalized event, got %v", deps.queue.finalized)
	}
}

func TestFinalizeByIDWithoutAutoSelectionStaysDraft(t *testing.T) {
	// Text matches nothing strongly enough to auto-select.
	coordinator, deps := newCoordinator(t, "bail")
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, "hash-1")

	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("FinalizeByID() error = %v", err)
	}

	stored := deps.repo.docs["doc-1"]
	if stored.Status != domain.StatusDraft {
		t.Fatalf("expected draft awaiting confirmation, got %s", stored.Status)
	}
	if len(stored.Alternatives) == 0 {
		t.Fatalf("expected candidates saved for later confirmation")
	}
}

func TestConfirmTypeFinalizesDraft(t *testing.T) {
	coordinator, deps := newCoordinator(t, "bail")
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, "hash-1")
	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("FinalizeByID() error = %v", err)
	}

	result, err := coordinator.ConfirmType(context.Background(), "org-1", "doc-1", "LEASE_AGREEMENT")
	if err != nil {
		t.Fatalf("ConfirmType() error = %v", err)
	}
	if result.Status != domain.StatusActive || result.ChosenType != "LEASE_AGREEMENT" {
		t.Fatalf("expected active LEASE_AGREEMENT, got %+v", result)
	}
	if len(result.Links) != 2 {
		t.Fatalf("expected lease + global links, got %d", len(result.Links))
	}
	if deps.repo.docs["doc-1"].Status != domain.StatusActive {
		t.Fatalf("expected stored active document")
	}
}

func TestConfirmTypeRejectsUnknownCode(t *testing.T) {
	coordinator, deps := newCoordinator(t, "bail")
	stageDraft(deps.repo, "doc-1", domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}, "hash-1")

	_, err := coordinator.ConfirmType(context.Background(), "org-1", "doc-1", "NOPE")
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestConfirmTypeRejectsNonDrafts(t *testing.T) {
	coordinator, deps := newCoordinator(t, "Quittance de loyer")
	ic := domain.IngestionContext{OrgID: "org-1", LeaseID: "L1"}
	stageDraft(deps.repo, "doc-1", ic, "hash-1")
	if err := coordinator.FinalizeByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("FinalizeByID() error = %v", err)
	}

	_, err := coordinator.ConfirmType(context.Background(), "org-1", "doc-1", "RENT_RECEIPT")
	if !domain.IsKind(err, domain.ErrConflict) {
		t.Fatalf("expected conflict for confirmed non-draft, got %v", err)
	}
}
