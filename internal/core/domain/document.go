package domain

import "time"

type DocumentStatus string

const (
	StatusDraft   DocumentStatus = "draft"
	StatusActive  DocumentStatus = "active"
	StatusDeleted DocumentStatus = "deleted"
)

// validTransitions is the single place that answers whether a lifecycle
// move is allowed. Deletion is soft and reversible.
var validTransitions = map[DocumentStatus]map[DocumentStatus]bool{
	StatusDraft: {
		StatusActive:  true,
		StatusDeleted: true,
	},
	StatusActive: {
		StatusDeleted: true,
	},
	StatusDeleted: {
		StatusActive: true,
	},
}

func ValidTransition(from, to DocumentStatus) bool {
	return validTransitions[from][to]
}

// Period is a declared time range a document covers (e.g. a rent month).
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) Overlaps(other Period) bool {
	return !p.Start.After(other.End) && !other.Start.After(p.End)
}

type Document struct {
	ID           string           `json:"id"`
	OrgID        string           `json:"org_id"`
	Filename     string           `json:"filename"`
	MimeType     string           `json:"mime_type"`
	StoragePath  string           `json:"storage_path"`
	FileHash     string           `json:"file_hash,omitempty"`
	TextHash     string           `json:"text_hash,omitempty"`
	TextPreview  string           `json:"-"`
	TypeCode     string           `json:"type_code,omitempty"`
	Confidence   float64          `json:"confidence,omitempty"`
	Alternatives []TypeCandidate  `json:"alternatives,omitempty"`
	Context      IngestionContext `json:"context"`
	Policy       DuplicatePolicy  `json:"duplicate_policy,omitempty"`
	Period       *Period          `json:"period,omitempty"`
	Status       DocumentStatus   `json:"status"`
	Error        string           `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	FinalizedAt  *time.Time       `json:"finalized_at,omitempty"`
	DeletedAt    *time.Time       `json:"deleted_at,omitempty"`
}

// ExtractedText is the normalized output of the text-extraction collaborator.
type ExtractedText struct {
	NormalizedText string
	TextHash       string
	Quality        float64
}

// IngestResult is the composed outcome of one ingestion.
type IngestResult struct {
	DocumentID       string                 `json:"document_id"`
	Status           DocumentStatus         `json:"status"`
	Decision         ClassificationDecision `json:"decision"`
	ChosenType       string                 `json:"chosen_type,omitempty"`
	Confidence       float64                `json:"confidence,omitempty"`
	Alternatives     []TypeCandidate        `json:"alternatives,omitempty"`
	Links            []DocumentLink         `json:"links,omitempty"`
	DuplicateVerdict *DedupVerdict          `json:"duplicate_verdict,omitempty"`
}
