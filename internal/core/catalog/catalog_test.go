package catalog

import (
	"context"
	"testing"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

func TestLoadCompilesSignalsWithFlags(t *testing.T) {
	snap, err := Load(1, []domain.TypeDefinitionRecord{
		{
			Code:   "RENT_RECEIPT",
			Label:  "Quittance de loyer",
			Active: true,
			Signals: []domain.SignalRuleSpec{
				{Pattern: "loyer", Flags: "i", Weight: 3},
			},
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	def, ok := snap.ByCode("RENT_RECEIPT")
	if !ok {
		t.Fatalf("expected RENT_RECEIPT definition")
	}
	if len(def.Signals) != 1 {
		t.Fatalf("expected one compiled signal")
	}
	if !def.Signals[0].Pattern.MatchString("Montant du LOYER") {
		t.Fatalf("expected case-insensitive match")
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	_, err := Load(1, []domain.TypeDefinitionRecord{
		{
			Code:    "BROKEN",
			Active:  true,
			Signals: []domain.SignalRuleSpec{{Pattern: "([unclosed", Weight: 1}},
		},
	})
	if !domain.IsKind(err, domain.ErrConfigValidation) {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestLoadRejectsDuplicateCode(t *testing.T) {
	_, err := Load(1, []domain.TypeDefinitionRecord{
		{Code: "LEASE_AGREEMENT", Active: true},
		{Code: "LEASE_AGREEMENT", Active: true},
	})
	if !domain.IsKind(err, domain.ErrConfigValidation) {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestLoadRejectsEmptyCode(t *testing.T) {
	_, err := Load(1, []domain.TypeDefinitionRecord{{Code: "  ", Active: true}})
	if !domain.IsKind(err, domain.ErrConfigValidation) {
		t.Fatalf("expected config validation error, got %v", err)
	}
}

func TestActiveFiltersInactiveDefinitions(t *testing.T) {
	snap, err := Load(3, []domain.TypeDefinitionRecord{
		{Code: "A", Active: true},
		{Code: "B", Active: false},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if snap.Version() != 3 {
		t.Fatalf("Version() = %d, want 3", snap.Version())
	}
	active := snap.Active()
	if len(active) != 1 || active[0].Code != "A" {
		t.Fatalf("unexpected active set: %+v", active)
	}
}

type sourceFake struct {
	version   int64
	records   []domain.TypeDefinitionRecord
	listCalls int
}

func (f *sourceFake) CurrentVersion(context.Context) (int64, error) {
	return f.version, nil
}

func (f *sourceFake) ListRecords(context.Context) ([]domain.TypeDefinitionRecord, int64, error) {
	f.listCalls++
	return f.records, f.version, nil
}

func TestProviderReloadsOnlyWhenVersionMoves(t *testing.T) {
	source := &sourceFake{
		version: 1,
		records: []domain.TypeDefinitionRecord{{Code: "A", Active: true}},
	}
	provider := NewProvider(source)

	first, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	second, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if first != second {
		t.Fatalf("expected cached snapshot while version unchanged")
	}
	if source.listCalls != 1 {
		t.Fatalf("expected one record fetch, got %d", source.listCalls)
	}

	source.version = 2
	source.records = append(source.records, domain.TypeDefinitionRecord{Code: "B", Active: true})
	third, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if third == second {
		t.Fatalf("expected new snapshot after version bump")
	}
	if third.Version() != 2 || third.Len() != 2 {
		t.Fatalf("unexpected reloaded snapshot: version=%d len=%d", third.Version(), third.Len())
	}
}
