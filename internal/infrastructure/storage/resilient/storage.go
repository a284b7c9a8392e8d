// Package resilient decorates an object store with the shared retry and
// circuit-breaker executor. Open is idempotent and retried; Save consumes a
// one-shot stream and is never replayed, it only feeds the breaker.
package resilient

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
	"github.com/gestiloc/document-pipeline/internal/core/ports"
	"github.com/gestiloc/document-pipeline/internal/infrastructure/resilience"
)

type Storage struct {
	inner    ports.ObjectStorage
	executor *resilience.Executor
}

func Wrap(inner ports.ObjectStorage, executor *resilience.Executor) *Storage {
	return &Storage{inner: inner, executor: executor}
}

func (s *Storage) Save(ctx context.Context, key string, data io.Reader) (string, error) {
	var fileHash string
	err := s.executor.Execute(ctx, "storage.save", func(ctx context.Context) error {
		var err error
		fileHash, err = s.inner.Save(ctx, key, data)
		return err
	}, classifySaveError)
	if err != nil {
		return "", wrapTransient("storage save", err)
	}
	return fileHash, nil
}

func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	var rc io.ReadCloser
	err := s.executor.Execute(ctx, "storage.open", func(ctx context.Context) error {
		var err error
		rc, err = s.inner.Open(ctx, key)
		return err
	}, classifyOpenError)
	if err != nil {
		return nil, wrapTransient("storage open", err)
	}
	return rc, nil
}

func classifySaveError(err error) resilience.Class {
	if err == nil {
		return resilience.Class{}
	}
	// The upload body cannot be rewound, so a failed save is surfaced to
	// the caller instead of retried.
	return resilience.Class{Retryable: false, RecordFailure: recordable(err)}
}

func classifyOpenError(err error) resilience.Class {
	if err == nil {
		return resilience.Class{}
	}
	if !recordable(err) {
		return resilience.Class{}
	}
	if errors.Is(err, fs.ErrNotExist) || domain.IsKind(err, domain.ErrNotFound) {
		return resilience.Class{Retryable: false, RecordFailure: false}
	}
	return resilience.Class{Retryable: true, RecordFailure: true}
}

func recordable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func wrapTransient(op string, err error) error {
	if resilience.IsCircuitOpen(err) && !domain.IsKind(err, domain.ErrTransientStorage) {
		return domain.WrapError(domain.ErrTransientStorage, op, err)
	}
	return err
}
