package schemas

// StructuralKind names one of the canonical pipeline skeletons.
type StructuralKind string

const (
	// KindSingleEntity is a per-symbol iteration dispatching one routine per
	// symbol, run in parallel. It is the more general default skeleton.
	KindSingleEntity StructuralKind = "single_entity"
	// KindVectorizedMulti applies independent boolean-mask filters directly
	// over one bulk tabular frame and aggregates by symbol.
	KindVectorizedMulti StructuralKind = "vectorized_multi"
	// KindUnknown means no fingerprint scored above the confidence threshold.
	// The synthesizer treats it as KindSingleEntity.
	KindUnknown StructuralKind = "unknown"
)

// StructuralProfile is the classifier's decision about which skeleton the
// document belongs to. It is a pure function of the document: identical input
// yields an identical profile.
type StructuralProfile struct {
	Kind              StructuralKind `json:"kind"`
	MatchedTemplateID string         `json:"matched_template_id"`
	Confidence        float64        `json:"confidence"`
}

// EffectiveKind resolves Unknown to the default skeleton.
func (p StructuralProfile) EffectiveKind() StructuralKind {
	if p.Kind == KindUnknown {
		return KindSingleEntity
	}
	return p.Kind
}
