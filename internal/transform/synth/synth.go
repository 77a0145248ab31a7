// Package synth assembles the TransformationSpec and serializes it into the
// generation instruction. Every extracted region yields exactly one insertion
// directive; the spec stays strongly typed until the collaborator boundary,
// where RenderPrompt flattens it to text.
package synth

import (
	"fmt"
	"math"

	"github.com/scanforge/scanforge/api/schemas"
	"go.uber.org/zap"
)

// Synthesizer builds TransformationSpecs.
type Synthesizer struct {
	logger            *zap.Logger
	minLengthRatio    float64
	forbiddenPatterns []string
}

// New creates a Synthesizer. The forbidden pattern list is the human-readable
// enumeration embedded in the generation instruction.
func New(logger *zap.Logger, minLengthRatio float64, forbiddenPatterns []string) *Synthesizer {
	return &Synthesizer{
		logger:            logger.Named("synth"),
		minLengthRatio:    minLengthRatio,
		forbiddenPatterns: forbiddenPatterns,
	}
}

// Synthesize combines the extracted parameters, logic regions, and the
// structural profile into one immutable TransformationSpec.
//
// Invariant: the number of labeled insertion directives must exactly equal
// the number of extracted regions. A mismatch means the synthesizer itself
// dropped something the extractor found; that is an internal bug class and
// aborts before any generation attempt.
func (s *Synthesizer) Synthesize(params *schemas.ParameterSet, regions []schemas.LogicRegion, profile schemas.StructuralProfile) (*schemas.TransformationSpec, error) {
	directives := make([]schemas.InsertionDirective, 0, len(regions))
	seen := make(map[string]struct{}, len(regions))

	for _, region := range regions {
		if _, dup := seen[region.Label]; dup {
			return nil, fmt.Errorf("%w: duplicate directive label %q", schemas.ErrSynthesisInvariant, region.Label)
		}
		seen[region.Label] = struct{}{}
		directives = append(directives, schemas.InsertionDirective{
			Label:     region.Label,
			Verbatim:  region.RawText,
			MinLength: int(math.Ceil(s.minLengthRatio * float64(region.Length()))),
		})
	}

	if len(directives) != len(regions) {
		return nil, fmt.Errorf("%w: %d directives for %d regions", schemas.ErrSynthesisInvariant, len(directives), len(regions))
	}

	spec := &schemas.TransformationSpec{
		Parameters:        params,
		Regions:           regions,
		Directives:        directives,
		Profile:           profile,
		ForbiddenPatterns: append([]string(nil), s.forbiddenPatterns...),
		MinLengthRatio:    s.minLengthRatio,
	}

	s.logger.Debug("Transformation spec synthesized.",
		zap.Int("parameters", params.Len()),
		zap.Int("directives", len(directives)),
		zap.String("skeleton", string(profile.EffectiveKind())))

	return spec, nil
}
