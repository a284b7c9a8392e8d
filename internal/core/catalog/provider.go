package catalog

import (
	"context"
	"fmt"
	"sync"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// Source supplies raw type-definition records and the current config
// version stamp, typically backed by the configuration store.
type Source interface {
	CurrentVersion(ctx context.Context) (int64, error)
	ListRecords(ctx context.Context) ([]domain.TypeDefinitionRecord, int64, error)
}

// Provider caches the loaded snapshot and rebuilds it only when the version
// stamp moves. Readers always get a complete snapshot, never a partially
// updated one.
type Provider struct {
	source Source

	mu   sync.RWMutex
	snap *Snapshot
}

func NewProvider(source Source) *Provider {
	return &Provider{source: source}
}

func (p *Provider) Snapshot(ctx context.Context) (*Snapshot, error) {
	version, err := p.source.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("read catalog version: %w", err)
	}

	p.mu.RLock()
	cached := p.snap
	p.mu.RUnlock()
	if cached != nil && cached.Version() == version {
		return cached, nil
	}

	records, loadedVersion, err := p.source.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list catalog records: %w", err)
	}
	snap, err := Load(loadedVersion, records)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	// A concurrent refresh may have loaded a newer version; keep the newest.
	if p.snap == nil || p.snap.Version() < snap.Version() {
		p.snap = snap
	} else {
		snap = p.snap
	}
	p.mu.Unlock()

	return snap, nil
}
