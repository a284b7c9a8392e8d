package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// TypeDefinitionSource serves catalog records from the configuration
// tables. Every write bumps the catalog version so cached snapshots are
// rebuilt on the next read.
type TypeDefinitionSource struct {
	db *sql.DB
}

func NewTypeDefinitionSource(db *sql.DB) *TypeDefinitionSource {
	return &TypeDefinitionSource{db: db}
}

func (s *TypeDefinitionSource) CurrentVersion(ctx context.Context) (int64, error) {
	var version int64
	if err := s.db.QueryRowContext(ctx, `SELECT version FROM catalog_meta WHERE id = 1`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read catalog version: %w", err)
	}
	return version, nil
}

func (s *TypeDefinitionSource) ListRecords(ctx context.Context) ([]domain.TypeDefinitionRecord, int64, error) {
	version, err := s.CurrentVersion(ctx)
	if err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT definition FROM document_type_definitions ORDER BY code`)
	if err != nil {
		return nil, 0, fmt.Errorf("list type definitions: %w", err)
	}
	defer rows.Close()

	var records []domain.TypeDefinitionRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, 0, fmt.Errorf("scan type definition: %w", err)
		}
		var record domain.TypeDefinitionRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, 0, fmt.Errorf("unmarshal type definition: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate type definitions: %w", err)
	}
	return records, version, nil
}

// Seed installs the given definitions when the catalog table is empty.
// Used at bootstrap with the embedded system defaults.
func (s *TypeDefinitionSource) Seed(ctx context.Context, records []domain.TypeDefinitionRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin seed tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_type_definitions`).Scan(&count); err != nil {
		return fmt.Errorf("count type definitions: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, record := range records {
		raw, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("marshal type definition %s: %w", record.Code, err)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_type_definitions (code, definition, active, updated_at)
VALUES ($1,$2,$3,$4)
`, record.Code, raw, record.Active, now); err != nil {
			return mapPgError("insert type definition", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE catalog_meta SET version = version + 1 WHERE id = 1`); err != nil {
		return fmt.Errorf("bump catalog version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed tx: %w", err)
	}
	return nil
}
