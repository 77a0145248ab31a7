package schemas

import "fmt"

// ParameterKind classifies the literal value of a configuration entry.
type ParameterKind string

const (
	KindNumber ParameterKind = "number"
	KindBool   ParameterKind = "bool"
	KindString ParameterKind = "string"
	KindNull   ParameterKind = "null"
)

// ParameterDefinition is a single `name: literal` entry extracted from the
// configuration container. LiteralValue holds the literal exactly as written
// in the source so regeneration can reproduce it verbatim.
type ParameterDefinition struct {
	Name         string        `json:"name"`
	Kind         ParameterKind `json:"kind"`
	LiteralValue string        `json:"literal_value"`
	SourceOffset int           `json:"source_offset"`
}

// ParameterSet is an ordered name->definition mapping. Insertion order is
// preserved; deterministic regeneration and diffing depend on it. It is
// produced once by the extractor and read-only thereafter.
type ParameterSet struct {
	defs  []ParameterDefinition
	index map[string]int
}

// NewParameterSet returns an empty set.
func NewParameterSet() *ParameterSet {
	return &ParameterSet{index: make(map[string]int)}
}

// Add appends a definition. Names must be unique within the set.
func (ps *ParameterSet) Add(def ParameterDefinition) error {
	if _, exists := ps.index[def.Name]; exists {
		return fmt.Errorf("duplicate parameter name %q", def.Name)
	}
	ps.index[def.Name] = len(ps.defs)
	ps.defs = append(ps.defs, def)
	return nil
}

// Get looks a definition up by name.
func (ps *ParameterSet) Get(name string) (ParameterDefinition, bool) {
	i, ok := ps.index[name]
	if !ok {
		return ParameterDefinition{}, false
	}
	return ps.defs[i], true
}

// Definitions returns the entries in insertion order. The returned slice is a
// copy; the set itself stays immutable.
func (ps *ParameterSet) Definitions() []ParameterDefinition {
	out := make([]ParameterDefinition, len(ps.defs))
	copy(out, ps.defs)
	return out
}

// Names returns parameter names in insertion order.
func (ps *ParameterSet) Names() []string {
	names := make([]string, len(ps.defs))
	for i, d := range ps.defs {
		names[i] = d.Name
	}
	return names
}

// Len reports the number of entries.
func (ps *ParameterSet) Len() int { return len(ps.defs) }

// LogicRegion is a contiguous labeled span of extracted semantic code: the
// mandatory detection routine or a named helper. EndOffset > StartOffset and
// regions never overlap.
type LogicRegion struct {
	Label       string  `json:"label"`
	StartOffset int     `json:"start_offset"`
	EndOffset   int     `json:"end_offset"`
	RawText     string  `json:"raw_text"`
	Confidence  float64 `json:"confidence"`
}

// Length returns the span length in bytes.
func (r LogicRegion) Length() int { return r.EndOffset - r.StartOffset }
