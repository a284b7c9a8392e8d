package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/gestiloc/document-pipeline/internal/core/classify"
	"github.com/gestiloc/document-pipeline/internal/core/dedup"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/linking"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
)

const textPreviewChars = 2000

// IngestionCoordinator composes classification, deduplication, linking and
// lifecycle into the single ingestion operation exposed to callers.
//
// Failure discipline: once a draft row exists, any mid-pipeline failure
// leaves it in draft with the error recorded. No document is ever observed
// active with a partial link set; status change and link insertion commit
// in one transaction.
type IngestionCoordinator struct {
	repo      ports.DocumentRepository
	links     ports.LinkRepository
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	catalog   ports.CatalogProvider
	engine    *classify.Engine
	analyzer  *dedup.Analyzer
	resolver  *linking.Resolver
	queue     ports.MessageQueue
}

func NewIngestionCoordinator(
	repo ports.DocumentRepository,
	links ports.LinkRepository,
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	catalog ports.CatalogProvider,
	engine *classify.Engine,
	analyzer *dedup.Analyzer,
	resolver *linking.Resolver,
	queue ports.MessageQueue,
) *IngestionCoordinator {
	return &IngestionCoordinator{
		repo:      repo,
		links:     links,
		storage:   storage,
		extractor: extractor,
		catalog:   catalog,
		engine:    engine,
		analyzer:  analyzer,
		resolver:  resolver,
		queue:     queue,
	}
}

// Ingest runs the synchronous upload flow: store bytes, extract, classify,
// dedup-check, create the draft, resolve links, finalize. A blocking
// duplicate verdict refuses creation before any row is written and returns
// the existing document's identity.
func (c *IngestionCoordinator) Ingest(
	ctx context.Context,
	file ports.FileUpload,
	ic domain.IngestionContext,
	period *domain.Period,
	policy domain.DuplicatePolicy,
) (*domain.IngestResult, error) {
	if ic.OrgID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "ingest", errors.New("organization id is required"))
	}

	doc, err := c.storeDraft(ctx, file, ic, period, policy)
	if err != nil {
		return nil, err
	}

	extracted, err := c.extractor.Extract(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}
	applyExtraction(doc, extracted)

	classification, err := c.classify(ctx, doc, extracted)
	if err != nil {
		return nil, err
	}

	verdict, err := c.analyzeDuplicates(ctx, doc, extracted, classification)
	if err != nil {
		return nil, err
	}
	policy = c.effectivePolicy(ctx, doc, classification)
	if verdict.Blocking(policy) {
		return nil, &domain.DuplicateBlockedError{
			ExistingDocumentID: verdict.MatchedDocumentID,
			Verdict:            verdict,
		}
	}

	applyClassification(doc, classification)
	if err := c.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create draft document: %w", err)
	}

	result := &domain.IngestResult{
		DocumentID:   doc.ID,
		Status:       doc.Status,
		Decision:     classification.Decision,
		Alternatives: classification.Candidates,
	}
	if verdict.Tier != domain.TierDistinct {
		result.DuplicateVerdict = &verdict
	}

	// Without an auto-chosen type the document stays draft awaiting a
	// manual confirmation; linking happens at finalization.
	if classification.Chosen == nil {
		return result, nil
	}

	links, err := c.finalize(ctx, doc, ic)
	if err != nil {
		c.recordFailure(ctx, doc.ID, err)
		return nil, err
	}

	result.Status = doc.Status
	result.ChosenType = doc.TypeCode
	result.Confidence = doc.Confidence
	result.Links = links
	return result, nil
}

func (c *IngestionCoordinator) storeDraft(
	ctx context.Context,
	file ports.FileUpload,
	ic domain.IngestionContext,
	period *domain.Period,
	policy domain.DuplicatePolicy,
) (*domain.Document, error) {
	id := uuid.NewString()
	key := fmt.Sprintf("%s_%s", id, sanitizeFilename(file.Filename))

	fileHash, err := c.storage.Save(ctx, key, file.Body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := time.Now().UTC()
	return &domain.Document{
		ID:          id,
		OrgID:       ic.OrgID,
		Filename:    file.Filename,
		MimeType:    file.MimeType,
		StoragePath: key,
		FileHash:    fileHash,
		Context:     ic,
		Policy:      policy,
		Period:      period,
		Status:      domain.StatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func (c *IngestionCoordinator) classify(
	ctx context.Context,
	doc *domain.Document,
	extracted domain.ExtractedText,
) (domain.ClassificationResult, error) {
	snap, err := c.catalog.Snapshot(ctx)
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("load catalog snapshot: %w", err)
	}

	result, err := c.engine.Classify(snap, classify.Input{
		Text:            extracted.NormalizedText,
		MimeType:        doc.MimeType,
		DeclaredContext: doc.Context.DeclaredContext,
	})
	if err != nil {
		return domain.ClassificationResult{}, fmt.Errorf("classify document: %w", err)
	}
	return result, nil
}

// analyzeDuplicates compares the document against candidates sharing its
// linking context. A context with no concrete targets yields no candidates
// and therefore a distinct verdict.
func (c *IngestionCoordinator) analyzeDuplicates(
	ctx context.Context,
	doc *domain.Document,
	extracted domain.ExtractedText,
	classification domain.ClassificationResult,
) (domain.DedupVerdict, error) {
	targets := concreteTargets(doc.Context)
	if len(targets) == 0 {
		return domain.DedupVerdict{Tier: domain.TierDistinct, RecommendedAction: domain.ActionNone}, nil
	}

	candidates, err := c.repo.ListDedupCandidates(ctx, doc.OrgID, targets)
	if err != nil {
		return domain.DedupVerdict{}, fmt.Errorf("list dedup candidates: %w", err)
	}

	return c.analyzer.Compare(dedup.Input{
		FileHash:       doc.FileHash,
		TextHash:       doc.TextHash,
		NormalizedText: extracted.NormalizedText,
		TopTypeCode:    topTypeCode(classification),
		Period:         doc.Period,
	}, candidates), nil
}

// effectivePolicy resolves the duplicate policy: an explicit caller policy
// wins, else the top candidate type's configured policy, else warn.
func (c *IngestionCoordinator) effectivePolicy(
	ctx context.Context,
	doc *domain.Document,
	classification domain.ClassificationResult,
) domain.DuplicatePolicy {
	if doc.Policy != "" {
		return doc.Policy
	}
	if code := topTypeCode(classification); code != "" {
		if snap, err := c.catalog.Snapshot(ctx); err == nil {
			if def, ok := snap.ByCode(code); ok && def.DuplicatePolicy != "" {
				doc.Policy = def.DuplicatePolicy
				return def.DuplicatePolicy
			}
		}
	}
	doc.Policy = domain.PolicyWarn
	return domain.PolicyWarn
}

// finalize resolves the link set and commits the draft-to-active
// transition. A lost primary-slot race surfaces as a conflict from the
// persistence layer; it is retried exactly once with a fresh resolution.
func (c *IngestionCoordinator) finalize(
	ctx context.Context,
	doc *domain.Document,
	ic domain.IngestionContext,
) ([]domain.DocumentLink, error) {
	var links []domain.DocumentLink
	for attempt := 0; ; attempt++ {
		resolved, err := c.resolver.Resolve(ctx, doc.ID, ic)
		if err != nil {
			return nil, fmt.Errorf("resolve links: %w", err)
		}

		err = c.repo.Finalize(ctx, doc, resolved)
		if err == nil {
			links = resolved
			break
		}
		if domain.IsKind(err, domain.ErrConflict) && attempt == 0 {
			slog.Warn("primary_link_race_lost", "document_id", doc.ID)
			continue
		}
		return nil, fmt.Errorf("finalize document: %w", err)
	}

	now := time.Now().UTC()
	doc.Status = domain.StatusActive
	doc.FinalizedAt = &now
	doc.UpdatedAt = now

	if err := c.queue.PublishDocumentFinalized(ctx, doc.ID); err != nil {
		// The document is fully finalized; the event is best-effort
		// fanout for downstream collaborators.
		slog.Warn("publish_finalized_event_failed", "document_id", doc.ID, "error", err)
	}
	return links, nil
}

func (c *IngestionCoordinator) recordFailure(ctx context.Context, documentID string, cause error) {
	if err := c.repo.UpdateStatus(ctx, documentID, domain.StatusDraft, cause.Error()); err != nil {
		slog.Error("record_ingest_failure", "document_id", documentID, "error", err)
	}
}

func applyExtraction(doc *domain.Document, extracted domain.ExtractedText) {
	doc.TextHash = extracted.TextHash
	doc.TextPreview = truncate(extracted.NormalizedText, textPreviewChars)
}

func applyClassification(doc *domain.Document, classification domain.ClassificationResult) {
	doc.Alternatives = classification.Candidates
	if classification.Chosen != nil {
		doc.TypeCode = classification.Chosen.TypeCode
		doc.Confidence = classification.Chosen.Confidence
	}
}

func topTypeCode(classification domain.ClassificationResult) string {
	if classification.Chosen != nil {
		return classification.Chosen.TypeCode
	}
	if len(classification.Candidates) > 0 {
		return classification.Candidates[0].TypeCode
	}
	return ""
}

func concreteTargets(ic domain.IngestionContext) []domain.LinkTarget {
	var targets []domain.LinkTarget
	for _, target := range ic.Targets() {
		if !target.IsGlobal() {
			targets = append(targets, target)
		}
	}
	return targets
}

// truncate cuts s to at most max bytes, backing off to the previous rune
// boundary so the preview stays valid UTF-8 for the text column.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
