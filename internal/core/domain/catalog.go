package domain

// KeywordRule matches when its text occurs in the normalized input,
// case-insensitively.
type KeywordRule struct {
	Text   string  `json:"text" yaml:"text"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// SignalRuleSpec is the raw, uncompiled form of a pattern rule as stored in
// configuration. Patterns are compiled once at catalog load time.
type SignalRuleSpec struct {
	Pattern string  `json:"pattern" yaml:"pattern"`
	Flags   string  `json:"flags,omitempty" yaml:"flags,omitempty"`
	Weight  float64 `json:"weight" yaml:"weight"`
}

// TypeDefinitionRecord is the loosely-typed configuration row for one
// document type. The catalog validates and compiles it into its
// strongly-typed form.
type TypeDefinitionRecord struct {
	Code                string           `json:"code" yaml:"code"`
	Label               string           `json:"label" yaml:"label"`
	System              bool             `json:"system" yaml:"system"`
	DisplayOrder        int              `json:"display_order" yaml:"display_order"`
	Active              bool             `json:"active" yaml:"active"`
	Contexts            []ContextKind    `json:"contexts" yaml:"contexts"`
	AutoSelectThreshold float64          `json:"auto_select_threshold" yaml:"auto_select_threshold"`
	AskTop3Below        float64          `json:"ask_top3_below" yaml:"ask_top3_below"`
	DuplicatePolicy     DuplicatePolicy  `json:"duplicate_policy" yaml:"duplicate_policy"`
	Keywords            []KeywordRule    `json:"keywords" yaml:"keywords"`
	Signals             []SignalRuleSpec `json:"signals" yaml:"signals"`
}
