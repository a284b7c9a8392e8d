package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gestiloc/document-pipeline/internal/core/catalog"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type repoFake struct {
	docs       map[string]*domain.Document
	candidates []domain.DedupCandidate

	createErr     error
	finalizeErr   error
	conflictsLeft int

	finalized      map[string][]domain.DocumentLink
	finalizeCalls  int
	restoreDemotes []domain.LinkTarget
	restoreCalls   int
	softDeleted    []string
}

func newRepoFake() *repoFake {
	return &repoFake{
		docs:      make(map[string]*domain.Document),
		finalized: make(map[string][]domain.DocumentLink),
	}
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *doc
	f.docs[doc.ID] = &copied
	return nil
}

func (f *repoFake) GetByID(_ context.Context, orgID, id string) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok || (orgID != "" && doc.OrgID != orgID) {
		return nil, domain.WrapError(domain.ErrNotFound, "fetch document", fmt.Errorf("document %s", id))
	}
	copied := *doc
	return &copied, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "update status", fmt.Errorf("document %s", id))
	}
	doc.Status = status
	doc.Error = errMessage
	return nil
}

func (f *repoFake) SaveExtraction(_ context.Context, id string, textHash, textPreview string) error {
	if doc, ok := f.docs[id]; ok {
		doc.TextHash = textHash
		doc.TextPreview = textPreview
	}
	return nil
}

func (f *repoFake) SaveClassification(_ context.Context, id string, res domain.ClassificationResult) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "save classification", fmt.Errorf("document %s", id))
	}
	doc.Alternatives = res.Candidates
	if res.Chosen != nil {
		doc.TypeCode = res.Chosen.TypeCode
		doc.Confidence = res.Chosen.Confidence
	}
	return nil
}

func (f *repoFake) Finalize(_ context.Context, doc *domain.Document, links []domain.DocumentLink) error {
	f.finalizeCalls++
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return domain.WrapError(domain.ErrConflict, "finalize", errors.New("primary slot already taken"))
	}
	stored, ok := f.docs[doc.ID]
	if !ok {
		copied := *doc
		stored = &copied
		f.docs[doc.ID] = stored
	}
	now := time.Now().UTC()
	stored.Status = domain.StatusActive
	stored.FinalizedAt = &now
	f.finalized[doc.ID] = links
	return nil
}

func (f *repoFake) SoftDelete(_ context.Context, id string) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "soft delete", fmt.Errorf("document %s", id))
	}
	now := time.Now().UTC()
	doc.Status = domain.StatusDeleted
	doc.DeletedAt = &now
	f.softDeleted = append(f.softDeleted, id)
	return nil
}

func (f *repoFake) Restore(_ context.Context, id string, demote []domain.LinkTarget) error {
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrNotFound, "restore", fmt.Errorf("document %s", id))
	}
	doc.Status = domain.StatusActive
	doc.DeletedAt = nil
	f.restoreCalls++
	f.restoreDemotes = demote
	return nil
}

func (f *repoFake) ListDedupCandidates(context.Context, string, []domain.LinkTarget) ([]domain.DedupCandidate, error) {
	return f.candidates, nil
}

type linkRepoFake struct {
	links            []domain.DocumentLink
	primaries        map[string]string
	linkedCounts     map[string]int
	findPrimaryCalls int
}

func newLinkRepoFake() *linkRepoFake {
	return &linkRepoFake{
		primaries:    make(map[string]string),
		linkedCounts: make(map[string]int),
	}
}

func (f *linkRepoFake) ListByDocument(_ context.Context, documentID string) ([]domain.DocumentLink, error) {
	var out []domain.DocumentLink
	for _, link := range f.links {
		if link.DocumentID == documentID {
			out = append(out, link)
		}
	}
	return out, nil
}

func (f *linkRepoFake) FindPrimary(_ context.Context, target domain.LinkTarget) (string, error) {
	f.findPrimaryCalls++
	return f.primaries[target.String()], nil
}

func (f *linkRepoFake) CountLinkedDocuments(_ context.Context, target domain.LinkTarget, _ string) (int, error) {
	return f.linkedCounts[target.String()], nil
}

type storageFake struct {
	saved map[string]string
	err   error
}

func newStorageFake() *storageFake {
	return &storageFake{saved: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	f.saved[key] = string(raw)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.saved[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type extractorFake struct {
	texts map[string]string
	err   error
}

func (f *extractorFake) Extract(_ context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	if f.err != nil {
		return domain.ExtractedText{}, f.err
	}
	raw, ok := f.texts[doc.ID]
	if !ok {
		raw = f.texts[""]
	}
	normalized := domain.NormalizeText(raw)
	return domain.ExtractedText{
		NormalizedText: normalized,
		TextHash:       domain.HashText(normalized),
		Quality:        1.0,
	}, nil
}

type catalogProviderFake struct {
	snap *catalog.Snapshot
	err  error
}

func (f *catalogProviderFake) Snapshot(context.Context) (*catalog.Snapshot, error) {
	return f.snap, f.err
}

type queueFake struct {
	staged    []string
	finalized []string
	stageErr  error
}

func (f *queueFake) PublishDocumentStaged(_ context.Context, documentID string) error {
	if f.stageErr != nil {
		return f.stageErr
	}
	f.staged = append(f.staged, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentStaged(context.Context, func(context.Context, string, time.Time) error) error {
	return errors.New("not implemented")
}

func (f *queueFake) PublishDocumentFinalized(_ context.Context, documentID string) error {
	f.finalized = append(f.finalized, documentID)
	return nil
}

type authzAllowAll struct{}

func (authzAllowAll) EntityBelongsTo(context.Context, string, domain.LinkTarget) (bool, error) {
	return true, nil
}
