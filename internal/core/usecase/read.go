package usecase

import (
	"context"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
)

// DocumentReadModel serves document metadata and link state to the API.
type DocumentReadModel struct {
	repo  ports.DocumentRepository
	links ports.LinkRepository
}

func NewDocumentReadModel(repo ports.DocumentRepository, links ports.LinkRepository) *DocumentReadModel {
	return &DocumentReadModel{repo: repo, links: links}
}

func (rm *DocumentReadModel) GetByID(ctx context.Context, orgID, id string) (*domain.Document, error) {
	return rm.repo.GetByID(ctx, orgID, id)
}

func (rm *DocumentReadModel) ListLinks(ctx context.Context, orgID, id string) ([]domain.DocumentLink, error) {
	if _, err := rm.repo.GetByID(ctx, orgID, id); err != nil {
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	links, err := rm.links.ListByDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list document links: %w", err)
	}

	live := links[:0]
	for _, link := range links {
		if !link.Deleted {
			live = append(live, link)
		}
	}
	return live, nil
}
