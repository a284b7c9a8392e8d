package usecase

import (
	"context"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
)

// LifecycleManager governs the draft/active/deleted transitions outside
// finalization. Deletion is always soft; restore brings the original link
// set back, demoting any primary slot another document claimed in the
// interim.
type LifecycleManager struct {
	repo  ports.DocumentRepository
	links ports.LinkRepository
}

func NewLifecycleManager(repo ports.DocumentRepository, links ports.LinkRepository) *LifecycleManager {
	return &LifecycleManager{repo: repo, links: links}
}

// Discard abandons a provisional upload before finalization. Drafts have no
// links, so there are no entity side effects.
func (m *LifecycleManager) Discard(ctx context.Context, orgID, id string) error {
	doc, err := m.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return fmt.Errorf("fetch document: %w", err)
	}
	if doc.Status != domain.StatusDraft {
		return domain.WrapError(domain.ErrConflict, "discard",
			fmt.Errorf("document %s is %s, only drafts can be discarded", id, doc.Status))
	}
	if err := m.repo.SoftDelete(ctx, id); err != nil {
		return fmt.Errorf("discard document: %w", err)
	}
	return nil
}

// SoftDelete marks an active document deleted. Under the block policy the
// deletion is refused when any context would be stranded, and the blocking
// contexts are returned; under warn the deletion proceeds and the blockers
// are reported.
func (m *LifecycleManager) SoftDelete(ctx context.Context, orgID, id string, policy ports.OrphanPolicy) ([]domain.Blocker, error) {
	doc, err := m.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	if doc.Status == domain.StatusDeleted {
		return nil, nil
	}
	if !domain.ValidTransition(doc.Status, domain.StatusDeleted) {
		return nil, domain.WrapError(domain.ErrConflict, "soft delete",
			fmt.Errorf("document %s cannot move from %s to deleted", id, doc.Status))
	}

	blockers, err := m.collectBlockers(ctx, doc)
	if err != nil {
		return nil, err
	}
	if len(blockers) > 0 && policy != ports.OrphanWarn {
		return blockers, &domain.SoftDeleteBlockedError{DocumentID: id, Blockers: blockers}
	}

	if err := m.repo.SoftDelete(ctx, id); err != nil {
		return nil, fmt.Errorf("soft delete document: %w", err)
	}
	return blockers, nil
}

// collectBlockers finds contexts for which this document is the sole
// non-deleted coverage. Removing the last document linked to a target
// strands it; the global fallback never blocks.
func (m *LifecycleManager) collectBlockers(ctx context.Context, doc *domain.Document) ([]domain.Blocker, error) {
	links, err := m.links.ListByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list document links: %w", err)
	}

	var blockers []domain.Blocker
	for _, link := range links {
		if link.Deleted || link.Target.IsGlobal() || link.Role != domain.RolePrimary {
			continue
		}
		others, err := m.links.CountLinkedDocuments(ctx, link.Target, doc.ID)
		if err != nil {
			return nil, fmt.Errorf("count documents for %s: %w", link.Target, err)
		}
		if others == 0 {
			blockers = append(blockers, domain.Blocker{
				Target: link.Target,
				Reason: fmt.Sprintf("document %s is the only document covering %s", doc.ID, link.Target),
			})
		}
	}
	return blockers, nil
}

// Restore reactivates a deleted document. It is idempotent: restoring an
// active document is a no-op and existing links are never duplicated. A
// primary slot claimed by another document in the interim is conceded, the
// restored link comes back as derived.
func (m *LifecycleManager) Restore(ctx context.Context, orgID, id string) (*domain.Document, error) {
	doc, err := m.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	if doc.Status == domain.StatusActive {
		return doc, nil
	}
	if !domain.ValidTransition(doc.Status, domain.StatusActive) {
		return nil, domain.WrapError(domain.ErrConflict, "restore",
			fmt.Errorf("document %s cannot move from %s to active", id, doc.Status))
	}

	links, err := m.links.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list document links: %w", err)
	}

	var demote []domain.LinkTarget
	for _, link := range links {
		if link.Target.IsGlobal() || link.Role != domain.RolePrimary {
			continue
		}
		holder, err := m.links.FindPrimary(ctx, link.Target)
		if err != nil {
			return nil, fmt.Errorf("find primary for %s: %w", link.Target, err)
		}
		if holder != "" && holder != id {
			demote = append(demote, link.Target)
		}
	}

	if err := m.repo.Restore(ctx, id, demote); err != nil {
		return nil, fmt.Errorf("restore document: %w", err)
	}

	restored, err := m.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("reload restored document: %w", err)
	}
	return restored, nil
}
