package catalogseed

import (
	"testing"

	"github.com/gestiloc/document-pipeline/internal/core/catalog"
)

func TestDefaultsLoadIntoCatalog(t *testing.T) {
	records, err := Defaults()
	if err != nil {
		t.Fatalf("Defaults() error = %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("expected embedded defaults")
	}

	// Every embedded pattern must compile and every code be unique.
	snap, err := catalog.Load(1, records)
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}
	if _, ok := snap.ByCode("RENT_RECEIPT"); !ok {
		t.Fatalf("expected RENT_RECEIPT in defaults")
	}
	if _, ok := snap.ByCode("OTHER"); !ok {
		t.Fatalf("expected OTHER fallback type in defaults")
	}
}
