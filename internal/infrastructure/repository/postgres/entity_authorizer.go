package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// EntityAuthorizer answers ownership checks against the org_entities
// registry the platform maintains for leases, properties, tenants and
// transactions.
type EntityAuthorizer struct {
	db *sql.DB
}

func NewEntityAuthorizer(db *sql.DB) *EntityAuthorizer {
	return &EntityAuthorizer{db: db}
}

func (a *EntityAuthorizer) EntityBelongsTo(ctx context.Context, orgID string, target domain.LinkTarget) (bool, error) {
	if target.IsGlobal() {
		return true, nil
	}

	row := a.db.QueryRowContext(ctx, `
SELECT org_id FROM org_entities WHERE entity_type = $1 AND entity_id = $2
`, string(target.Type), target.ID)

	var owner string
	if err := row.Scan(&owner); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("look up entity %s: %w", target, err)
	}
	return owner == orgID, nil
}
