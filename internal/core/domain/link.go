package domain

import (
	"fmt"
	"time"
)

type TargetType string

const (
	TargetLease       TargetType = "lease"
	TargetProperty    TargetType = "property"
	TargetTenant      TargetType = "tenant"
	TargetTransaction TargetType = "transaction"
	TargetGlobal      TargetType = "global"
)

type LinkRole string

const (
	RolePrimary LinkRole = "primary"
	RoleDerived LinkRole = "derived"
)

// LinkTarget identifies the entity a document link points at. The global
// target carries no id; every other target type requires one.
type LinkTarget struct {
	Type TargetType `json:"target_type"`
	ID   string     `json:"target_id,omitempty"`
}

func GlobalTarget() LinkTarget {
	return LinkTarget{Type: TargetGlobal}
}

func (t LinkTarget) IsGlobal() bool {
	return t.Type == TargetGlobal
}

func (t LinkTarget) Validate() error {
	switch t.Type {
	case TargetLease, TargetProperty, TargetTenant, TargetTransaction:
		if t.ID == "" {
			return WrapError(ErrValidation, "validate link target", fmt.Errorf("%s target requires an id", t.Type))
		}
		return nil
	case TargetGlobal:
		if t.ID != "" {
			return WrapError(ErrValidation, "validate link target", fmt.Errorf("global target must not carry an id"))
		}
		return nil
	default:
		return WrapError(ErrValidation, "validate link target", fmt.Errorf("unknown target type %q", t.Type))
	}
}

func (t LinkTarget) String() string {
	if t.IsGlobal() {
		return string(TargetGlobal)
	}
	return fmt.Sprintf("%s:%s", t.Type, t.ID)
}

type DocumentLink struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	Target     LinkTarget `json:"target"`
	Role       LinkRole   `json:"role"`
	Deleted    bool       `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ContextKind names the usage context a caller declares at ingestion time
// and the default contexts a type definition applies to.
type ContextKind string

const (
	ContextLease       ContextKind = "lease"
	ContextProperty    ContextKind = "property"
	ContextTenant      ContextKind = "tenant"
	ContextTransaction ContextKind = "transaction"
	ContextGlobal      ContextKind = "global"
)

// IngestionContext is the set of entity identifiers supplied at ingestion
// time. It scopes both linking and deduplication.
type IngestionContext struct {
	OrgID           string      `json:"org_id"`
	PropertyID      string      `json:"property_id,omitempty"`
	LeaseID         string      `json:"lease_id,omitempty"`
	TenantIDs       []string    `json:"tenant_ids,omitempty"`
	TransactionID   string      `json:"transaction_id,omitempty"`
	DeclaredContext ContextKind `json:"declared_context,omitempty"`
	SkipGlobalLink  bool        `json:"skip_global_link,omitempty"`
}

// Targets expands the context into concrete link targets in resolution
// priority order: lease, property, tenants, transaction. The global target
// is appended last unless the caller opted out.
func (c IngestionContext) Targets() []LinkTarget {
	var targets []LinkTarget
	if c.LeaseID != "" {
		targets = append(targets, LinkTarget{Type: TargetLease, ID: c.LeaseID})
	}
	if c.PropertyID != "" {
		targets = append(targets, LinkTarget{Type: TargetProperty, ID: c.PropertyID})
	}
	for _, tenantID := range c.TenantIDs {
		if tenantID != "" {
			targets = append(targets, LinkTarget{Type: TargetTenant, ID: tenantID})
		}
	}
	if c.TransactionID != "" {
		targets = append(targets, LinkTarget{Type: TargetTransaction, ID: c.TransactionID})
	}
	if !c.SkipGlobalLink {
		targets = append(targets, GlobalTarget())
	}
	return targets
}

// Blocker describes a context that refuses an operation, typically a
// soft delete that would strand the target.
type Blocker struct {
	Target LinkTarget `json:"target"`
	Reason string     `json:"reason"`
}
