package domain

type EvidenceKind string

const (
	EvidenceKeyword EvidenceKind = "keyword"
	EvidenceSignal  EvidenceKind = "signal"
	EvidenceContext EvidenceKind = "context"
)

// Evidence records one matched rule contributing to a candidate's score.
type Evidence struct {
	Kind   EvidenceKind `json:"kind"`
	Value  string       `json:"value"`
	Weight float64      `json:"weight"`
}

type TypeCandidate struct {
	TypeCode   string     `json:"type_code"`
	Score      float64    `json:"score"`
	Confidence float64    `json:"confidence"`
	Evidence   []Evidence `json:"evidence,omitempty"`
}

type ClassificationDecision string

const (
	// DecisionAutoSelected means the top candidate cleared its type's
	// auto-select threshold and was chosen without user input.
	DecisionAutoSelected ClassificationDecision = "auto_selected"
	// DecisionConfirmTop invites confirmation of the top candidate.
	DecisionConfirmTop ClassificationDecision = "confirm_top"
	// DecisionAskTop3 means confidence was too low; the top three
	// candidates are surfaced for manual choice.
	DecisionAskTop3 ClassificationDecision = "ask_top3"
)

type ChosenType struct {
	TypeCode   string  `json:"type_code"`
	Confidence float64 `json:"confidence"`
}

type ClassificationResult struct {
	Chosen     *ChosenType            `json:"chosen,omitempty"`
	Decision   ClassificationDecision `json:"decision"`
	Candidates []TypeCandidate        `json:"candidates"`
}
