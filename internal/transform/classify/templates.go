package classify

import "github.com/scanforge/scanforge/api/schemas"

// Template is one canonical pipeline skeleton. The stage names double as the
// required entry points the compliance validator checks for.
type Template struct {
	ID     string
	Kind   schemas.StructuralKind
	Stages []string
}

var (
	singleEntityTemplate = Template{
		ID:   "single_entity_v1",
		Kind: schemas.KindSingleEntity,
		Stages: []string{
			"load_universe",
			"fetch_history",
			"compute_features",
			"evaluate_symbol",
			"emit_signals",
		},
	}

	vectorizedMultiTemplate = Template{
		ID:   "vectorized_multi_v1",
		Kind: schemas.KindVectorizedMulti,
		Stages: []string{
			"load_universe",
			"fetch_history",
			"build_frame",
			"apply_filters",
			"aggregate_signals",
		},
	}
)

// TemplateFor resolves a structural kind to its skeleton. Unknown resolves to
// the single-entity template, the more general default.
func TemplateFor(kind schemas.StructuralKind) Template {
	if kind == schemas.KindVectorizedMulti {
		return vectorizedMultiTemplate
	}
	return singleEntityTemplate
}

// StagesFor returns the required stage entry points for a kind.
func StagesFor(kind schemas.StructuralKind) []string {
	return TemplateFor(kind).Stages
}
