// Package dedup decides whether an incoming file duplicates an existing
// document. Comparison is tiered, cheapest signal first: raw-content hash,
// normalized-text hash, then a weighted similarity combination.
package dedup

import (
	"strings"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type Config struct {
	TextWeight   float64
	TypeWeight   float64
	PeriodWeight float64
	// SimilarThreshold is the combined score above which the verdict is
	// "similar" rather than "distinct".
	SimilarThreshold float64
	// NearDuplicateScore is assigned when normalized-text hashes match
	// but raw hashes differ (same content, different encoding/rescan).
	NearDuplicateScore float64
}

func DefaultConfig() Config {
	return Config{
		TextWeight:         0.6,
		TypeWeight:         0.25,
		PeriodWeight:       0.15,
		SimilarThreshold:   0.65,
		NearDuplicateScore: 0.9,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.TextWeight <= 0 {
		out.TextWeight = def.TextWeight
	}
	if out.TypeWeight < 0 {
		out.TypeWeight = 0
	}
	if out.PeriodWeight < 0 {
		out.PeriodWeight = 0
	}
	if out.SimilarThreshold <= 0 || out.SimilarThreshold > 1 {
		out.SimilarThreshold = def.SimilarThreshold
	}
	if out.NearDuplicateScore < 0.9 || out.NearDuplicateScore > 1 {
		out.NearDuplicateScore = def.NearDuplicateScore
	}
	return out
}

type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg.normalize()}
}

// Input summarizes the incoming file for comparison.
type Input struct {
	FileHash       string
	TextHash       string
	NormalizedText string
	TopTypeCode    string
	Period         *domain.Period
}

// Compare evaluates the input against the candidate set and returns the
// strongest verdict found. An empty candidate set yields "distinct".
func (a *Analyzer) Compare(in Input, candidates []domain.DedupCandidate) domain.DedupVerdict {
	best := domain.DedupVerdict{Tier: domain.TierDistinct, RecommendedAction: domain.ActionNone}

	for _, cand := range candidates {
		if in.FileHash != "" && in.FileHash == cand.FileHash {
			return domain.DedupVerdict{
				Tier:              domain.TierIdentical,
				Score:             1.0,
				RecommendedAction: domain.ActionBlock,
				MatchedDocumentID: cand.DocumentID,
			}
		}

		if in.TextHash != "" && in.TextHash == cand.TextHash {
			if best.Tier != domain.TierNearDuplicate || a.cfg.NearDuplicateScore > best.Score {
				best = domain.DedupVerdict{
					Tier:              domain.TierNearDuplicate,
					Score:             a.cfg.NearDuplicateScore,
					RecommendedAction: domain.ActionOfferLink,
					MatchedDocumentID: cand.DocumentID,
				}
			}
			continue
		}
		if best.Tier == domain.TierNearDuplicate {
			continue
		}

		score, ok := a.similarity(in, cand)
		if !ok {
			continue
		}
		if score >= a.cfg.SimilarThreshold && score > best.Score {
			best = domain.DedupVerdict{
				Tier:              domain.TierSimilar,
				Score:             score,
				RecommendedAction: domain.ActionFlag,
				MatchedDocumentID: cand.DocumentID,
			}
		}
	}

	return best
}

// similarity combines text overlap, type agreement and period overlap via a
// weighted average. Components with missing inputs are excluded from the
// combination rather than counted as mismatches.
func (a *Analyzer) similarity(in Input, cand domain.DedupCandidate) (float64, bool) {
	var weighted, totalWeight float64

	if in.NormalizedText != "" && cand.TextPreview != "" {
		weighted += a.cfg.TextWeight * tokenOverlap(in.NormalizedText, cand.TextPreview)
		totalWeight += a.cfg.TextWeight
	}

	if in.TopTypeCode != "" && cand.TypeCode != "" {
		agreement := 0.0
		if in.TopTypeCode == cand.TypeCode {
			agreement = 1.0
		}
		weighted += a.cfg.TypeWeight * agreement
		totalWeight += a.cfg.TypeWeight
	}

	if in.Period != nil && cand.Period != nil {
		overlap := 0.0
		if in.Period.Overlaps(*cand.Period) {
			overlap = 1.0
		}
		weighted += a.cfg.PeriodWeight * overlap
		totalWeight += a.cfg.PeriodWeight
	}

	if totalWeight == 0 {
		return 0, false
	}
	return weighted / totalWeight, true
}

// tokenOverlap is the Jaccard overlap of the two texts' token sets.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if setB[token] {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, token := range strings.Fields(text) {
		set[token] = true
	}
	return set
}
