package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gestiloc/document-pipeline/internal/infrastructure/resilience"
)

type documentEvent struct {
	DocumentID string    `json:"document_id"`
	EmittedAt  time.Time `json:"emitted_at"`
}

// Queue carries staged-document events from the api to the worker and fans
// out finalized-document notifications.
type Queue struct {
	conn             *nats.Conn
	stagedSubject    string
	finalizedSubject string
	executor         *resilience.Executor
}

func New(url, stagedSubject, finalizedSubject string) (*Queue, error) {
	return NewWithOptions(url, stagedSubject, finalizedSubject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func NewWithOptions(url, stagedSubject, finalizedSubject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("document-pipeline"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:             conn,
		stagedSubject:    stagedSubject,
		finalizedSubject: finalizedSubject,
		executor:         options.ResilienceExecutor,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentStaged(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish_staged", q.stagedSubject, documentID)
}

func (q *Queue) PublishDocumentFinalized(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish_finalized", q.finalizedSubject, documentID)
}

func (q *Queue) publish(ctx context.Context, operation, subject, documentID string) error {
	payload, err := json.Marshal(documentEvent{
		DocumentID: documentID,
		EmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", subject, err)
	}

	call := func(_ context.Context) error {
		if err := q.conn.Publish(subject, payload); err != nil {
			return fmt.Errorf("nats publish %s: %w", subject, err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTransientIfNeeded(err)
	}
	return nil
}

// SubscribeDocumentStaged consumes staged-document events in the workers
// queue group until the context is cancelled, then drains.
func (q *Queue) SubscribeDocumentStaged(ctx context.Context, handler func(context.Context, string, time.Time) error) error {
	sub, err := q.conn.QueueSubscribe(q.stagedSubject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var event documentEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil || event.DocumentID == "" {
			slog.Error("staged_event_malformed", "subject", q.stagedSubject, "error", err)
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, event.DocumentID, event.EmittedAt); err != nil {
			slog.Error("staged_document_handler_failed", "document_id", event.DocumentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
