package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	org_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	file_hash TEXT NOT NULL DEFAULT '',
	text_hash TEXT NOT NULL DEFAULT '',
	text_preview TEXT NOT NULL DEFAULT '',
	type_code TEXT,
	confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	alternatives JSONB NOT NULL DEFAULT '[]'::jsonb,
	context JSONB NOT NULL DEFAULT '{}'::jsonb,
	duplicate_policy TEXT NOT NULL DEFAULT '',
	period_start TIMESTAMPTZ,
	period_end TIMESTAMPTZ,
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	finalized_at TIMESTAMPTZ,
	deleted_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_documents_org_status ON documents(org_id, status);
CREATE INDEX IF NOT EXISTS idx_documents_org_file_hash ON documents(org_id, file_hash);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS document_links (
	id TEXT PRIMARY KEY,
	document_id TEXT NOT NULL REFERENCES documents(id),
	target_type TEXT NOT NULL,
	target_id TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL,
	deleted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_links_document ON document_links(document_id);
CREATE INDEX IF NOT EXISTS idx_document_links_target ON document_links(target_type, target_id);

-- One live primary per concrete target. The database is the final arbiter
-- of the race two concurrent finalizations can run into.
CREATE UNIQUE INDEX IF NOT EXISTS uq_document_links_primary
	ON document_links(target_type, target_id)
	WHERE role = 'primary' AND NOT deleted AND target_type <> 'global';

CREATE TABLE IF NOT EXISTS org_entities (
	org_id TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	PRIMARY KEY (entity_type, entity_id)
);

CREATE TABLE IF NOT EXISTS document_type_definitions (
	code TEXT PRIMARY KEY,
	definition JSONB NOT NULL,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_meta (
	id INT PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	version BIGINT NOT NULL DEFAULT 0
);

INSERT INTO catalog_meta (id, version) VALUES (1, 0) ON CONFLICT (id) DO NOTHING;
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	alternativesJSON, contextJSON, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}

	var periodStart, periodEnd any
	if doc.Period != nil {
		periodStart, periodEnd = doc.Period.Start, doc.Period.End
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, org_id, filename, mime_type, storage_path, file_hash, text_hash, text_preview,
	type_code, confidence, alternatives, context, duplicate_policy,
	period_start, period_end, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
`,
		doc.ID, doc.OrgID, doc.Filename, doc.MimeType, doc.StoragePath, doc.FileHash, doc.TextHash, doc.TextPreview,
		nullIfEmpty(doc.TypeCode), doc.Confidence, alternativesJSON, contextJSON, string(doc.Policy),
		periodStart, periodEnd, string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return mapPgError("insert document", err)
	}
	return nil
}

const documentColumns = `
id, org_id, filename, mime_type, storage_path, file_hash, text_hash, text_preview,
type_code, confidence, alternatives, context, duplicate_policy,
period_start, period_end, status, error_message, created_at, updated_at, finalized_at, deleted_at`

// GetByID is org-scoped; an empty orgID skips the scope check for trusted
// internal callers such as the worker.
func (r *DocumentRepository) GetByID(ctx context.Context, orgID, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM documents
WHERE id = $1 AND ($2 = '' OR org_id = $2)
`, id, orgID)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "fetch document", fmt.Errorf("document %s", id))
		}
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return mapPgError("update document status", err)
	}
	return requireRow(res, "update document status", id)
}

func (r *DocumentRepository) SaveExtraction(ctx context.Context, id string, textHash, textPreview string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET text_hash = $2, text_preview = $3, updated_at = $4
WHERE id = $1
`, id, textHash, textPreview, time.Now().UTC())
	if err != nil {
		return mapPgError("save extraction", err)
	}
	return requireRow(res, "save extraction", id)
}

func (r *DocumentRepository) SaveClassification(ctx context.Context, id string, cls domain.ClassificationResult) error {
	alternativesJSON, err := json.Marshal(cls.Candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	var typeCode any
	var confidence float64
	if cls.Chosen != nil {
		typeCode = cls.Chosen.TypeCode
		confidence = cls.Chosen.Confidence
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET type_code = $2, confidence = $3, alternatives = $4, updated_at = $5
WHERE id = $1
`, id, typeCode, confidence, alternativesJSON, time.Now().UTC())
	if err != nil {
		return mapPgError("save classification", err)
	}
	return requireRow(res, "save classification", id)
}

// Finalize commits the draft-to-active transition together with the link
// set. A violated primary-slot index surfaces as a conflict for the caller
// to re-resolve.
func (r *DocumentRepository) Finalize(ctx context.Context, doc *domain.Document, links []domain.DocumentLink) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET status = $2, type_code = $3, confidence = $4, error_message = '', finalized_at = $5, updated_at = $5
WHERE id = $1 AND status = $6
`, doc.ID, string(domain.StatusActive), nullIfEmpty(doc.TypeCode), doc.Confidence, now, string(domain.StatusDraft))
	if err != nil {
		return mapPgError("finalize document", err)
	}
	if err := requireRow(res, "finalize document", doc.ID); err != nil {
		return err
	}

	for _, link := range links {
		_, err := tx.ExecContext(ctx, `
INSERT INTO document_links (id, document_id, target_type, target_id, role, deleted, created_at)
VALUES ($1,$2,$3,$4,$5,FALSE,$6)
`, link.ID, link.DocumentID, string(link.Target.Type), link.Target.ID, string(link.Role), now)
		if err != nil {
			return mapPgError("insert document link", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mapPgError("commit finalize tx", err)
	}
	return nil
}

// SoftDelete marks the document and its links deleted in one transaction,
// freeing any primary slot the document held.
func (r *DocumentRepository) SoftDelete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin soft delete tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET status = $2, deleted_at = $3, updated_at = $3
WHERE id = $1
`, id, string(domain.StatusDeleted), now)
	if err != nil {
		return mapPgError("soft delete document", err)
	}
	if err := requireRow(res, "soft delete document", id); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE document_links SET deleted = TRUE WHERE document_id = $1
`, id); err != nil {
		return mapPgError("soft delete document links", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit soft delete tx: %w", err)
	}
	return nil
}

// Restore brings a deleted document and its links back, demoting the listed
// targets to derived because another document claimed their primary slot in
// the interim.
func (r *DocumentRepository) Restore(ctx context.Context, id string, demote []domain.LinkTarget) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin restore tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
UPDATE documents
SET status = $2, deleted_at = NULL, error_message = '', updated_at = $3
WHERE id = $1
`, id, string(domain.StatusActive), now)
	if err != nil {
		return mapPgError("restore document", err)
	}
	if err := requireRow(res, "restore document", id); err != nil {
		return err
	}

	for _, target := range demote {
		if _, err := tx.ExecContext(ctx, `
UPDATE document_links
SET role = $4
WHERE document_id = $1 AND target_type = $2 AND target_id = $3
`, id, string(target.Type), target.ID, string(domain.RoleDerived)); err != nil {
			return mapPgError("demote document link", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE document_links SET deleted = FALSE WHERE document_id = $1
`, id); err != nil {
		return mapPgError("restore document links", err)
	}

	if err := tx.Commit(); err != nil {
		return mapPgError("commit restore tx", err)
	}
	return nil
}

// ListDedupCandidates returns non-deleted documents in the organization
// sharing at least one concrete link target with the upload in flight.
func (r *DocumentRepository) ListDedupCandidates(ctx context.Context, orgID string, targets []domain.LinkTarget) ([]domain.DedupCandidate, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	var clauses []string
	args := []any{orgID}
	for _, target := range targets {
		clauses = append(clauses, fmt.Sprintf("(l.target_type = $%d AND l.target_id = $%d)", len(args)+1, len(args)+2))
		args = append(args, string(target.Type), target.ID)
	}

	query := `
SELECT DISTINCT d.id, d.file_hash, d.text_hash, d.type_code, d.text_preview, d.period_start, d.period_end
FROM documents d
JOIN document_links l ON l.document_id = d.id AND NOT l.deleted
WHERE d.org_id = $1 AND d.status <> 'deleted' AND (` + strings.Join(clauses, " OR ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapPgError("list dedup candidates", err)
	}
	defer rows.Close()

	var candidates []domain.DedupCandidate
	for rows.Next() {
		var c domain.DedupCandidate
		var typeCode sql.NullString
		var periodStart, periodEnd sql.NullTime
		if err := rows.Scan(&c.DocumentID, &c.FileHash, &c.TextHash, &typeCode, &c.TextPreview, &periodStart, &periodEnd); err != nil {
			return nil, fmt.Errorf("scan dedup candidate: %w", err)
		}
		c.TypeCode = typeCode.String
		if periodStart.Valid && periodEnd.Valid {
			c.Period = &domain.Period{Start: periodStart.Time, End: periodEnd.Time}
		}
		candidates = append(candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dedup candidates: %w", err)
	}
	return candidates, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var typeCode sql.NullString
	var alternativesRaw, contextRaw []byte
	var policy, status string
	var periodStart, periodEnd sql.NullTime
	var finalizedAt, deletedAt sql.NullTime

	err := row.Scan(
		&doc.ID, &doc.OrgID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.FileHash, &doc.TextHash, &doc.TextPreview,
		&typeCode, &doc.Confidence, &alternativesRaw, &contextRaw, &policy,
		&periodStart, &periodEnd, &status, &doc.Error, &doc.CreatedAt, &doc.UpdatedAt, &finalizedAt, &deletedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.TypeCode = typeCode.String
	doc.Policy = domain.DuplicatePolicy(policy)
	doc.Status = domain.DocumentStatus(status)
	if len(alternativesRaw) > 0 {
		if err := json.Unmarshal(alternativesRaw, &doc.Alternatives); err != nil {
			return nil, fmt.Errorf("unmarshal alternatives: %w", err)
		}
	}
	if len(contextRaw) > 0 {
		if err := json.Unmarshal(contextRaw, &doc.Context); err != nil {
			return nil, fmt.Errorf("unmarshal context: %w", err)
		}
	}
	if periodStart.Valid && periodEnd.Valid {
		doc.Period = &domain.Period{Start: periodStart.Time, End: periodEnd.Time}
	}
	if finalizedAt.Valid {
		doc.FinalizedAt = &finalizedAt.Time
	}
	if deletedAt.Valid {
		doc.DeletedAt = &deletedAt.Time
	}
	return &doc, nil
}

func marshalDocumentJSON(doc *domain.Document) (alternatives, context []byte, err error) {
	alternatives, err = json.Marshal(doc.Alternatives)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal alternatives: %w", err)
	}
	if doc.Alternatives == nil {
		alternatives = []byte("[]")
	}
	context, err = json.Marshal(doc.Context)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal context: %w", err)
	}
	return alternatives, context, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("document %s", id))
	}
	return nil
}

// mapPgError translates driver errors into domain kinds: unique violations
// become conflicts (the primary-slot race), everything else stays wrapped
// as-is.
func mapPgError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.WrapError(domain.ErrConflict, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
