// Package linking turns an ingestion context into a concrete document-link
// set while respecting the single-primary-per-target invariant.
package linking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
)

type Resolver struct {
	authz ports.EntityAuthorizer
	links ports.LinkRepository
}

func NewResolver(authz ports.EntityAuthorizer, links ports.LinkRepository) *Resolver {
	return &Resolver{authz: authz, links: links}
}

// Resolve maps the context to the link set for the document. The first
// document to claim a free (targetType, targetId) primary slot gets
// role=primary; an existing primary is never displaced, later documents
// link with role=derived. Global links are always derived: the global
// listing is a fallback surface, not an authoritative context.
//
// Resolution is deterministic and idempotent: resolving the same document
// and context again yields the same set, with slots the document already
// holds kept as primary.
func (r *Resolver) Resolve(ctx context.Context, documentID string, ic domain.IngestionContext) ([]domain.DocumentLink, error) {
	targets := ic.Targets()
	now := time.Now().UTC()

	links := make([]domain.DocumentLink, 0, len(targets))
	for _, target := range targets {
		if err := target.Validate(); err != nil {
			return nil, err
		}

		if !target.IsGlobal() {
			ok, err := r.authz.EntityBelongsTo(ctx, ic.OrgID, target)
			if err != nil {
				return nil, fmt.Errorf("authorize %s: %w", target, err)
			}
			if !ok {
				return nil, domain.WrapError(domain.ErrUnauthorized, "resolve links",
					fmt.Errorf("target %s outside organization %s", target, ic.OrgID))
			}
		}

		role := domain.RoleDerived
		if !target.IsGlobal() {
			holder, err := r.links.FindPrimary(ctx, target)
			if err != nil {
				return nil, fmt.Errorf("find primary for %s: %w", target, err)
			}
			if holder == "" || holder == documentID {
				role = domain.RolePrimary
			}
		}

		links = append(links, domain.DocumentLink{
			ID:         uuid.NewString(),
			DocumentID: documentID,
			Target:     target,
			Role:       role,
			CreatedAt:  now,
		})
	}

	return links, nil
}
