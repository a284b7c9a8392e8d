// Package catalog holds the validated, compiled document-type definitions
// and serves immutable version-stamped snapshots of them.
package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/gestiloc/document-pipeline/internal/core/domain"
)

// SignalRule is a compiled pattern rule. Compilation happens once at load
// time, never at match time.
type SignalRule struct {
	Pattern *regexp.Regexp
	Raw     string
	Weight  float64
}

type TypeDefinition struct {
	Code                string
	Label               string
	System              bool
	DisplayOrder        int
	Active              bool
	Contexts            []domain.ContextKind
	AutoSelectThreshold float64
	AskTop3Below        float64
	DuplicatePolicy     domain.DuplicatePolicy
	Keywords            []domain.KeywordRule
	Signals             []SignalRule
}

func (d *TypeDefinition) AppliesTo(kind domain.ContextKind) bool {
	for _, c := range d.Contexts {
		if c == kind {
			return true
		}
	}
	return false
}

// Snapshot is an immutable view of the catalog at one config version. It is
// replaced wholesale when the version stamp changes, so in-flight
// ingestions always score against a consistent rule set.
type Snapshot struct {
	version int64
	defs    []*TypeDefinition
	byCode  map[string]*TypeDefinition
}

// Load validates raw configuration records into a snapshot. It fails with a
// config-validation error on a duplicate type code or a pattern that does
// not compile.
func Load(version int64, records []domain.TypeDefinitionRecord) (*Snapshot, error) {
	snap := &Snapshot{
		version: version,
		byCode:  make(map[string]*TypeDefinition, len(records)),
	}

	for _, rec := range records {
		code := strings.TrimSpace(rec.Code)
		if code == "" {
			return nil, domain.WrapError(domain.ErrConfigValidation, "load catalog", fmt.Errorf("type definition with empty code"))
		}
		if _, exists := snap.byCode[code]; exists {
			return nil, domain.WrapError(domain.ErrConfigValidation, "load catalog", fmt.Errorf("duplicate type code %q", code))
		}

		def := &TypeDefinition{
			Code:                code,
			Label:               rec.Label,
			System:              rec.System,
			DisplayOrder:        rec.DisplayOrder,
			Active:              rec.Active,
			Contexts:            append([]domain.ContextKind(nil), rec.Contexts...),
			AutoSelectThreshold: rec.AutoSelectThreshold,
			AskTop3Below:        rec.AskTop3Below,
			DuplicatePolicy:     rec.DuplicatePolicy,
			Keywords:            append([]domain.KeywordRule(nil), rec.Keywords...),
		}
		if def.DuplicatePolicy == "" {
			def.DuplicatePolicy = domain.PolicyWarn
		}

		for _, spec := range rec.Signals {
			compiled, err := compileSignal(spec)
			if err != nil {
				return nil, domain.WrapError(domain.ErrConfigValidation, "load catalog",
					fmt.Errorf("type %q signal %q: %w", code, spec.Pattern, err))
			}
			def.Signals = append(def.Signals, compiled)
		}

		snap.defs = append(snap.defs, def)
		snap.byCode[code] = def
	}

	return snap, nil
}

func compileSignal(spec domain.SignalRuleSpec) (SignalRule, error) {
	if strings.TrimSpace(spec.Pattern) == "" {
		return SignalRule{}, fmt.Errorf("empty pattern")
	}

	expr := spec.Pattern
	if flags := parseFlags(spec.Flags); flags != "" {
		expr = "(?" + flags + ")" + expr
	}
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return SignalRule{}, err
	}
	return SignalRule{Pattern: pattern, Raw: spec.Pattern, Weight: spec.Weight}, nil
}

func parseFlags(flags string) string {
	var out strings.Builder
	for _, r := range strings.ToLower(flags) {
		switch r {
		case 'i', 'm', 's':
			out.WriteRune(r)
		}
	}
	return out.String()
}

func (s *Snapshot) Version() int64 {
	return s.version
}

// Active returns the active definitions in declaration order.
func (s *Snapshot) Active() []*TypeDefinition {
	var active []*TypeDefinition
	for _, def := range s.defs {
		if def.Active {
			active = append(active, def)
		}
	}
	return active
}

func (s *Snapshot) ByCode(code string) (*TypeDefinition, bool) {
	def, ok := s.byCode[code]
	return def, ok
}

func (s *Snapshot) Len() int {
	return len(s.defs)
}
