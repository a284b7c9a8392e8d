// Package extractor routes a stored document to the extractor matching its
// mime type and shapes the raw text into the normalized form the pipeline
// consumes.
package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// TextSource produces the raw text of one document format.
type TextSource interface {
	ExtractText(ctx context.Context, doc *domain.Document) (string, error)
}

type Router struct {
	byMime   map[string]TextSource
	fallback TextSource
}

// NewRouter routes by exact mime type; fallback handles everything
// unregistered, typically the plaintext extractor.
func NewRouter(fallback TextSource) *Router {
	return &Router{
		byMime:   make(map[string]TextSource),
		fallback: fallback,
	}
}

func (r *Router) Register(source TextSource, mimeTypes ...string) {
	for _, mt := range mimeTypes {
		r.byMime[normalizeMime(mt)] = source
	}
}

func (r *Router) Extract(ctx context.Context, doc *domain.Document) (domain.ExtractedText, error) {
	source, ok := r.byMime[normalizeMime(doc.MimeType)]
	if !ok {
		source = r.fallback
	}
	if source == nil {
		return domain.ExtractedText{}, domain.WrapError(domain.ErrValidation, "extract",
			fmt.Errorf("unsupported mime type %q", doc.MimeType))
	}

	raw, err := source.ExtractText(ctx, doc)
	if err != nil {
		return domain.ExtractedText{}, err
	}

	normalized := domain.NormalizeText(raw)
	return domain.ExtractedText{
		NormalizedText: normalized,
		TextHash:       domain.HashText(normalized),
		Quality:        textQuality(normalized),
	}, nil
}

// textQuality is the fraction of letter and digit runes in the normalized
// text. Garbage extractions (binary noise, OCR failures) score low and can
// be treated with suspicion downstream.
func textQuality(text string) float64 {
	if text == "" {
		return 0
	}
	var total, meaningful int
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			meaningful++
		}
	}
	return float64(meaningful) / float64(total)
}

func normalizeMime(mt string) string {
	mt = strings.TrimSpace(strings.ToLower(mt))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
