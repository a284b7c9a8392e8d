package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
)

// StageDocumentUseCase implements the staging flow: the api stores the file
// and creates a draft row, finalization happens asynchronously in the
// worker.
type StageDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewStageDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *StageDocumentUseCase {
	return &StageDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *StageDocumentUseCase) Stage(
	ctx context.Context,
	file ports.FileUpload,
	ic domain.IngestionContext,
	period *domain.Period,
	policy domain.DuplicatePolicy,
) (*domain.Document, error) {
	if ic.OrgID == "" {
		return nil, domain.WrapError(domain.ErrValidation, "stage", errors.New("organization id is required"))
	}

	id := uuid.NewString()
	key := fmt.Sprintf("%s_%s", id, sanitizeFilename(file.Filename))

	fileHash, err := uc.storage.Save(ctx, key, file.Body)
	if err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	now := time.Now().UTC()
	doc := &domain.Document{
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
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create draft document: %w", err)
	}

	if err := uc.queue.PublishDocumentStaged(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish staged event: %w", err)
	}

	return doc, nil
}
