// Package classify scores normalized text and file metadata against the
// type catalog. The engine is a pure function over its inputs and an
// immutable catalog snapshot.
package classify

import (
	"errors"
	"sort"
	"strings"

	"github.com/gestiloc/document-pipeline/internal/core/catalog"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

type Config struct {
	// CalibrationConstant divides raw matched weight into a [0,1]
	// confidence. Per-deployment, not per-type, so relative ranking
	// across types stays meaningful.
	CalibrationConstant float64
	// ContextBonus is added when the declared usage context is among a
	// type's default contexts.
	ContextBonus float64
}

func DefaultConfig() Config {
	return Config{
		CalibrationConstant: 10,
		ContextBonus:        2,
	}
}

func (c Config) normalize() Config {
	out := c
	def := DefaultConfig()
	if out.CalibrationConstant <= 0 {
		out.CalibrationConstant = def.CalibrationConstant
	}
	if out.ContextBonus < 0 {
		out.ContextBonus = 0
	}
	return out
}

type Engine struct {
	cfg Config
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg.normalize()}
}

// Input carries normalized text plus the file metadata relevant to scoring.
type Input struct {
	Text            string
	MimeType        string
	DeclaredContext domain.ContextKind
}

func (in Input) empty() bool {
	return strings.TrimSpace(in.Text) == "" && in.MimeType == "" && in.DeclaredContext == ""
}

// Classify ranks the active type definitions against the input and decides
// between auto-selection, confirmation of the top candidate, or surfacing
// the top three for manual choice.
func (e *Engine) Classify(snap *catalog.Snapshot, in Input) (domain.ClassificationResult, error) {
	if in.empty() {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrValidation, "classify", errors.New("empty text and metadata"))
	}

	defs := snap.Active()
	if len(defs) == 0 {
		return domain.ClassificationResult{}, domain.WrapError(domain.ErrConfigValidation, "classify", errors.New("catalog has no active type definitions"))
	}

	text := domain.NormalizeText(in.Text)

	candidates := make([]domain.TypeCandidate, 0, len(defs))
	for _, def := range defs {
		candidate := e.score(def, text, in.DeclaredContext)
		if candidate.Score > 0 {
			candidates = append(candidates, candidate)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		defA, _ := snap.ByCode(a.TypeCode)
		defB, _ := snap.ByCode(b.TypeCode)
		if defA.System != defB.System {
			return defA.System
		}
		if defA.DisplayOrder != defB.DisplayOrder {
			return defA.DisplayOrder < defB.DisplayOrder
		}
		return a.TypeCode < b.TypeCode
	})

	result := domain.ClassificationResult{
		Decision:   domain.DecisionConfirmTop,
		Candidates: candidates,
	}
	if len(candidates) == 0 {
		result.Decision = domain.DecisionAskTop3
		return result, nil
	}

	top := candidates[0]
	topDef, _ := snap.ByCode(top.TypeCode)
	switch {
	case topDef.AutoSelectThreshold > 0 && top.Confidence >= topDef.AutoSelectThreshold:
		result.Decision = domain.DecisionAutoSelected
		result.Chosen = &domain.ChosenType{TypeCode: top.TypeCode, Confidence: top.Confidence}
	case top.Confidence < topDef.AskTop3Below:
		result.Decision = domain.DecisionAskTop3
		if len(result.Candidates) > 3 {
			result.Candidates = result.Candidates[:3]
		}
	}

	return result, nil
}

func (e *Engine) score(def *catalog.TypeDefinition, text string, declared domain.ContextKind) domain.TypeCandidate {
	candidate := domain.TypeCandidate{TypeCode: def.Code}

	for _, kw := range def.Keywords {
		needle := strings.ToLower(strings.TrimSpace(kw.Text))
		if needle == "" || kw.Weight <= 0 {
			continue
		}
		if strings.Contains(text, needle) {
			candidate.Score += kw.Weight
			candidate.Evidence = append(candidate.Evidence, domain.Evidence{
				Kind:   domain.EvidenceKeyword,
				Value:  kw.Text,
				Weight: kw.Weight,
			})
		}
	}

	for _, sig := range def.Signals {
		if sig.Weight <= 0 {
			continue
		}
		if sig.Pattern.MatchString(text) {
			candidate.Score += sig.Weight
			candidate.Evidence = append(candidate.Evidence, domain.Evidence{
				Kind:   domain.EvidenceSignal,
				Value:  sig.Raw,
				Weight: sig.Weight,
			})
		}
	}

	if declared != "" && def.AppliesTo(declared) {
		candidate.Score += e.cfg.ContextBonus
		candidate.Evidence = append(candidate.Evidence, domain.Evidence{
			Kind:   domain.EvidenceContext,
			Value:  string(declared),
			Weight: e.cfg.ContextBonus,
		})
	}

	candidate.Confidence = clamp01(candidate.Score / e.cfg.CalibrationConstant)
	return candidate
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
