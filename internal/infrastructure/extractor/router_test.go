package extractor

import (
	"context"
	"errors"
	"testing"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type sourceStub struct {
	text string
	err  error
}

func (s *sourceStub) ExtractText(context.Context, *domain.Document) (string, error) {
	return s.text, s.err
}

func TestRouterRoutesByMime(t *testing.T) {
	pdfSource := &sourceStub{text: "Quittance  de LOYER"}
	fallback := &sourceStub{text: "fallback"}
	router := NewRouter(fallback)
	router.Register(pdfSource, "application/pdf")

	out, err := router.Extract(context.Background(), &domain.Document{MimeType: "application/pdf; charset=binary"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.NormalizedText != "quittance de loyer" {
		t.Fatalf("expected normalized text, got %q", out.NormalizedText)
	}
	if out.TextHash == "" {
		t.Fatalf("expected text hash")
	}

	out, err = router.Extract(context.Background(), &domain.Document{MimeType: "text/plain"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if out.NormalizedText != "fallback" {
		t.Fatalf("expected fallback extractor, got %q", out.NormalizedText)
	}
}

func TestRouterPropagatesSourceErrors(t *testing.T) {
	router := NewRouter(&sourceStub{err: errors.New("corrupt file")})
	if _, err := router.Extract(context.Background(), &domain.Document{MimeType: "text/plain"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestTextQuality(t *testing.T) {
	if q := textQuality(""); q != 0 {
		t.Fatalf("empty text quality = %f", q)
	}
	if q := textQuality("abc1"); q != 1 {
		t.Fatalf("clean text quality = %f", q)
	}
	if q := textQuality("ab!!"); q != 0.5 {
		t.Fatalf("noisy text quality = %f", q)
	}
}
