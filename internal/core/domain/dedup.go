package domain

type DedupTier string

const (
	TierIdentical     DedupTier = "identical"
	TierNearDuplicate DedupTier = "near-duplicate"
	TierSimilar       DedupTier = "similar"
	TierDistinct      DedupTier = "distinct"
)

type DedupAction string

const (
	ActionBlock     DedupAction = "block"
	ActionOfferLink DedupAction = "offer-link"
	ActionFlag      DedupAction = "flag"
	ActionNone      DedupAction = "none"
)

// DuplicatePolicy controls how a duplicate verdict affects the ingestion
// outcome: block refuses creation, warn attaches the verdict, silent
// records it without user-facing friction.
type DuplicatePolicy string

const (
	PolicyBlock  DuplicatePolicy = "block"
	PolicyWarn   DuplicatePolicy = "warn"
	PolicySilent DuplicatePolicy = "silent"
)

// DedupCandidate is a read-only summary of an existing document fetched for
// comparison. It is never persisted.
type DedupCandidate struct {
	DocumentID  string
	FileHash    string
	TextHash    string
	TypeCode    string
	TextPreview string
	Period      *Period
}

type DedupVerdict struct {
	Tier              DedupTier   `json:"tier"`
	Score             float64     `json:"score"`
	RecommendedAction DedupAction `json:"recommended_action"`
	MatchedDocumentID string      `json:"matched_document_id,omitempty"`
}

// Blocking reports whether this verdict refuses creation under the given
// policy. Only the hash-backed tiers ever block; a similarity-tier match is
// at most flagged, even under a block policy.
func (v DedupVerdict) Blocking(policy DuplicatePolicy) bool {
	if policy != PolicyBlock {
		return false
	}
	return v.Tier == TierIdentical || v.Tier == TierNearDuplicate
}
