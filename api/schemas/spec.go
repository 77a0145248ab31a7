package schemas

// InsertionDirective marks one extracted LogicRegion as a mandatory-content
// insertion point in the generated output. The candidate must contain a
// region under Label whose length is at least MinLength bytes.
type InsertionDirective struct {
	Label     string `json:"label"`
	Verbatim  string `json:"verbatim"`
	MinLength int    `json:"min_length"`
}

// TransformationSpec is the complete, unambiguous instruction bundle handed
// to the generation step. It is built once by the synthesizer and immutable
// thereafter. Each extracted LogicRegion appears exactly once as a labeled
// insertion directive; the synthesizer aborts if that invariant breaks.
type TransformationSpec struct {
	Parameters        *ParameterSet        `json:"-"`
	Regions           []LogicRegion        `json:"regions"`
	Directives        []InsertionDirective `json:"directives"`
	Profile           StructuralProfile    `json:"profile"`
	ForbiddenPatterns []string             `json:"forbidden_patterns"`
	MinLengthRatio    float64              `json:"min_length_ratio"`
}

// Region returns the extracted region for a directive label.
func (s *TransformationSpec) Region(label string) (LogicRegion, bool) {
	for _, r := range s.Regions {
		if r.Label == label {
			return r, true
		}
	}
	return LogicRegion{}, false
}
