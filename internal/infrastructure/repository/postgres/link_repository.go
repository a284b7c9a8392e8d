package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type LinkRepository struct {
	db *sql.DB
}

func NewLinkRepository(db *sql.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

func (r *LinkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.DocumentLink, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, target_type, target_id, role, deleted, created_at
FROM document_links
WHERE document_id = $1
ORDER BY created_at
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document links: %w", err)
	}
	defer rows.Close()

	var links []domain.DocumentLink
	for rows.Next() {
		var link domain.DocumentLink
		var targetType, role string
		if err := rows.Scan(&link.ID, &link.DocumentID, &targetType, &link.Target.ID, &role, &link.Deleted, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document link: %w", err)
		}
		link.Target.Type = domain.TargetType(targetType)
		link.Role = domain.LinkRole(role)
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document links: %w", err)
	}
	return links, nil
}

// FindPrimary returns the document currently holding the live primary role
// for the target, or "" when the slot is free.
func (r *LinkRepository) FindPrimary(ctx context.Context, target domain.LinkTarget) (string, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT l.document_id
FROM document_links l
JOIN documents d ON d.id = l.document_id
WHERE l.target_type = $1 AND l.target_id = $2
  AND l.role = 'primary' AND NOT l.deleted
  AND d.status <> 'deleted'
`, string(target.Type), target.ID)

	var documentID string
	if err := row.Scan(&documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("find primary link: %w", err)
	}
	return documentID, nil
}

func (r *LinkRepository) CountLinkedDocuments(ctx context.Context, target domain.LinkTarget, excludeDocumentID string) (int, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(DISTINCT l.document_id)
FROM document_links l
JOIN documents d ON d.id = l.document_id
WHERE l.target_type = $1 AND l.target_id = $2
  AND NOT l.deleted AND d.status <> 'deleted'
  AND l.document_id <> $3
`, string(target.Type), target.ID, excludeDocumentID)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count linked documents: %w", err)
	}
	return count, nil
}
