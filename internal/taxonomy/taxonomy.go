// Package taxonomy holds the fixed, versioned marketing enumerations that every
// classifier and LLM output is validated against.
package taxonomy

import "strings"

// SchemaVersion is stamped into every report so stored results can be matched
// to the enumeration set that produced them.
const SchemaVersion = "2024.1"

// Field names, as they appear in LLM output and report JSON.
const (
	HookTypes        = "hook_types"
	FunnelStages     = "funnel_stages"
	ProofTypes       = "proof_types"
	ObjectionTypes   = "objection_types"
	OfferTypes       = "offer_types"
	CTATypes         = "cta_types"
	DestinationTypes = "destination_types"
	MOFUJobTypes     = "mofu_job_types"
	DecisionTypes    = "decision_types"
	MismatchLevels   = "mismatch_levels"
)

// Fallback sentinels.
const (
	Unknown       = "unknown"
	NotApplicable = "not_applicable"
	Null          = ""
)

// Funnel stages.
const (
	StageTOFU = "tofu"
	StageMOFU = "mofu"
	StageBOFU = "bofu"
)

// Claim/proof mismatch levels.
const (
	MismatchLow    = "low"
	MismatchMedium = "medium"
	MismatchHigh   = "high"
)

// Enum is one named enumeration.
type Enum struct {
	Name     string
	Values   []string
	Fallback string
}

// Registry is an immutable set of enumerations.
type Registry struct {
	enums map[string]Enum
	order []string
}

// Default is the registry built from the current schema.
var Default = New(defaultEnums()...)

// New builds a registry. Later enums with a duplicate name replace earlier ones.
func New(enums ...Enum) *Registry {
	r := &Registry{enums: make(map[string]Enum, len(enums))}
	for _, e := range enums {
		if _, ok := r.enums[e.Name]; !ok {
			r.order = append(r.order, e.Name)
		}
		values := make([]string, len(e.Values))
		copy(values, e.Values)
		r.enums[e.Name] = Enum{Name: e.Name, Values: values, Fallback: e.Fallback}
	}
	return r
}

// Fields returns the enumeration names in registration order.
func (r *Registry) Fields() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Values returns a copy of the allowed values for a field.
func (r *Registry) Values(field string) []string {
	e, ok := r.enums[field]
	if !ok {
		return nil
	}
	out := make([]string, len(e.Values))
	copy(out, e.Values)
	return out
}

// Fallback returns the sentinel substituted for invalid values of a field.
func (r *Registry) Fallback(field string) string {
	return r.enums[field].Fallback
}

// Contains reports whether value is an exact member of field.
func (r *Registry) Contains(field, value string) bool {
	e, ok := r.enums[field]
	if !ok {
		return false
	}
	for _, v := range e.Values {
		if v == value {
			return true
		}
	}
	return false
}

// IsFallback reports whether value is the field's fallback sentinel or any of
// the shared sentinels.
func (r *Registry) IsFallback(field, value string) bool {
	if value == Unknown || value == NotApplicable || value == Null {
		return true
	}
	return value == r.Fallback(field)
}

// Validate returns value if it belongs to field, retrying once with a
// canonicalized form (lower case, spaces and hyphens to underscores).
// Anything else yields the field's fallback.
func (r *Registry) Validate(field, value string) string {
	e, ok := r.enums[field]
	if !ok {
		return Null
	}
	if r.Contains(field, value) {
		return value
	}
	canon := Canonicalize(value)
	if r.Contains(field, canon) {
		return canon
	}
	return e.Fallback
}

// ValidateList validates each element, dropping invalid and duplicate values.
// The result is never nil.
func (r *Registry) ValidateList(field string, values []string) []string {
	out := []string{}
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		got := r.Validate(field, v)
		if r.IsFallback(field, got) || seen[got] {
			continue
		}
		seen[got] = true
		out = append(out, got)
	}
	return out
}

// Canonicalize lower-cases a token and joins its words with underscores.
func Canonicalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("-", " ", "/", " ").Replace(s)
	return strings.Join(strings.Fields(s), "_")
}
