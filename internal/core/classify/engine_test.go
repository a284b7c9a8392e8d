package classify

import (
	"testing"

	"github.com/gestiloc/document-pipeline/internal/core/catalog"
	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

func mustSnapshot(t *testing.T, records ...domain.TypeDefinitionRecord) *catalog.Snapshot {
	t.Helper()
	snap, err := catalog.Load(1, records)
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	return snap
}

func TestClassifyRentReceiptAutoSelected(t *testing.T) {
	snap := mustSnapshot(t, domain.TypeDefinitionRecord{
		Code:                "RENT_RECEIPT",
		Label:               "Quittance de loyer",
		System:              true,
		Active:              true,
		AutoSelectThreshold: 0.6,
		Keywords:            []domain.KeywordRule{{Text: "quittance", Weight: 5}},
		Signals:             []domain.SignalRuleSpec{{Pattern: "loyer", Weight: 3}},
	})
	engine := NewEngine(Config{CalibrationConstant: 10})

	result, err := engine.Classify(snap, Input{Text: "Quittance de loyer Janvier 2025, montant 800€"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Decision != domain.DecisionAutoSelected {
		t.Fatalf("expected auto-selected decision, got %s", result.Decision)
	}
	if result.Chosen == nil || result.Chosen.TypeCode != "RENT_RECEIPT" {
		t.Fatalf("expected chosen RENT_RECEIPT, got %+v", result.Chosen)
	}
	if result.Chosen.Confidence < 0.6 {
		t.Fatalf("expected confidence >= 0.6, got %f", result.Chosen.Confidence)
	}
	if len(result.Candidates[0].Evidence) != 2 {
		t.Fatalf("expected keyword + signal evidence, got %+v", result.Candidates[0].Evidence)
	}
}

func TestClassifyMonotonicInMatchedWeight(t *testing.T) {
	base := domain.TypeDefinitionRecord{
		Code:     "INVOICE",
		Active:   true,
		Keywords: []domain.KeywordRule{{Text: "facture", Weight: 3}},
	}
	richer := base
	richer.Keywords = append([]domain.KeywordRule{{Text: "montant", Weight: 2}}, base.Keywords...)

	engine := NewEngine(DefaultConfig())
	text := "facture montant total"

	lean, err := engine.Classify(mustSnapshot(t, base), Input{Text: text})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	rich, err := engine.Classify(mustSnapshot(t, richer), Input{Text: text})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if rich.Candidates[0].Confidence < lean.Candidates[0].Confidence {
		t.Fatalf("adding matching rules decreased confidence: %f < %f",
			rich.Candidates[0].Confidence, lean.Candidates[0].Confidence)
	}
	if lean.Candidates[0].Confidence < 0 || lean.Candidates[0].Confidence > 1 {
		t.Fatalf("confidence outside [0,1]: %f", lean.Candidates[0].Confidence)
	}
}

func TestClassifyContextBonusOnlyForDeclaredContext(t *testing.T) {
	snap := mustSnapshot(t, domain.TypeDefinitionRecord{
		Code:     "LEASE_AGREEMENT",
		Active:   true,
		Contexts: []domain.ContextKind{domain.ContextLease},
		Keywords: []domain.KeywordRule{{Text: "bail", Weight: 4}},
	})
	engine := NewEngine(Config{CalibrationConstant: 10, ContextBonus: 2})

	without, err := engine.Classify(snap, Input{Text: "contrat de bail"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	with, err := engine.Classify(snap, Input{Text: "contrat de bail", DeclaredContext: domain.ContextLease})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	if with.Candidates[0].Score != without.Candidates[0].Score+2 {
		t.Fatalf("expected context bonus of 2, got %f vs %f",
			with.Candidates[0].Score, without.Candidates[0].Score)
	}
}

func TestClassifyTieBreakOrder(t *testing.T) {
	// All three match the same keyword with the same weight.
	kw := []domain.KeywordRule{{Text: "document", Weight: 3}}
	snap := mustSnapshot(t,
		domain.TypeDefinitionRecord{Code: "ZULU", Active: true, System: false, DisplayOrder: 1, Keywords: kw},
		domain.TypeDefinitionRecord{Code: "MIKE", Active: true, System: true, DisplayOrder: 2, Keywords: kw},
		domain.TypeDefinitionRecord{Code: "ALPHA", Active: true, System: true, DisplayOrder: 2, Keywords: kw},
	)
	engine := NewEngine(DefaultConfig())

	result, err := engine.Classify(snap, Input{Text: "un document"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}

	got := []string{result.Candidates[0].TypeCode, result.Candidates[1].TypeCode, result.Candidates[2].TypeCode}
	want := []string{"ALPHA", "MIKE", "ZULU"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tie-break order = %v, want %v", got, want)
		}
	}
}

func TestClassifyAskTop3BelowThreshold(t *testing.T) {
	records := []domain.TypeDefinitionRecord{
		{Code: "A", Active: true, AskTop3Below: 0.5, Keywords: []domain.KeywordRule{{Text: "avis", Weight: 2}}},
		{Code: "B", Active: true, Keywords: []domain.KeywordRule{{Text: "avis", Weight: 1.5}}},
		{Code: "C", Active: true, Keywords: []domain.KeywordRule{{Text: "avis", Weight: 1}}},
		{Code: "D", Active: true, Keywords: []domain.KeywordRule{{Text: "avis", Weight: 0.5}}},
	}
	snap := mustSnapshot(t, records...)
	engine := NewEngine(Config{CalibrationConstant: 10})

	result, err := engine.Classify(snap, Input{Text: "avis"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Decision != domain.DecisionAskTop3 {
		t.Fatalf("expected ask-top3 decision, got %s", result.Decision)
	}
	if result.Chosen != nil {
		t.Fatalf("expected no chosen type, got %+v", result.Chosen)
	}
	if len(result.Candidates) != 3 {
		t.Fatalf("expected top three candidates, got %d", len(result.Candidates))
	}
}

func TestClassifyConfirmTopBetweenThresholds(t *testing.T) {
	snap := mustSnapshot(t, domain.TypeDefinitionRecord{
		Code:                "INSURANCE",
		Active:              true,
		AutoSelectThreshold: 0.9,
		AskTop3Below:        0.2,
		Keywords:            []domain.KeywordRule{{Text: "assurance", Weight: 5}},
	})
	engine := NewEngine(Config{CalibrationConstant: 10})

	result, err := engine.Classify(snap, Input{Text: "attestation assurance habitation"})
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if result.Decision != domain.DecisionConfirmTop {
		t.Fatalf("expected confirm-top decision, got %s", result.Decision)
	}
	if result.Chosen != nil {
		t.Fatalf("confirm-top must not auto-choose")
	}
}

func TestClassifyEmptyInput(t *testing.T) {
	snap := mustSnapshot(t, domain.TypeDefinitionRecord{Code: "A", Active: true})
	engine := NewEngine(DefaultConfig())

	_, err := engine.Classify(snap, Input{})
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClassifyNoActiveTypes(t *testing.T) {
	snap := mustSnapshot(t, domain.TypeDefinitionRecord{Code: "A", Active: false})
	engine := NewEngine(DefaultConfig())

	_, err := engine.Classify(snap, Input{Text: "quittance"})
	if !domain.IsKind(err, domain.ErrConfigValidation) {
		t.Fatalf("expected config validation error, got %v", err)
	}
}
