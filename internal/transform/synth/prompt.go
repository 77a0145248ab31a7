package synth

import (
	"fmt"
	"strings"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/classify"
)

// SystemPrompt is the fixed persona instruction for the generation
// collaborator.
func SystemPrompt() string {
	return `You rewrite trading-scanner scripts into a standardized five-stage pipeline.
You are given the scanner's exact configuration parameters, its verbatim logic regions, and the target skeleton.
Rules, non-negotiable:
1. Reproduce every configuration parameter with its exact literal value. Do not rename, reorder, drop, or "improve" any parameter.
2. Insert every labeled logic region into its named slot. The region's detection logic must be carried over complete; reformatting is allowed, deletion is not.
3. Never substitute a stub, a pass-through, a pass/ellipsis body, or a deferred-work comment for any mandatory region.
4. Produce only the rewritten script. No commentary, no markdown fences.`
}

// RenderPrompt serializes a transformation spec into the generation instruction. On
// retries, feedback carries the prior attempt's violations so the next
// attempt receives concrete, targeted corrections instead of the same prompt.
func RenderPrompt(spec *schemas.TransformationSpec, feedback []schemas.Violation) string {
	var sb strings.Builder
	template := classify.TemplateFor(spec.Profile.EffectiveKind())

	// (a) The literal parameter set as an explicit assignment block.
	fmt.Fprintf(&sb, "## CONFIGURATION PARAMETERS (reproduce verbatim, in this order) ##\n")
	if spec.Parameters.Len() == 0 {
		fmt.Fprintf(&sb, "(none extracted; emit an empty PARAMS block)\n")
	} else {
		fmt.Fprintf(&sb, "PARAMS = {\n")
		for _, def := range spec.Parameters.Definitions() {
			fmt.Fprintf(&sb, "    %q: %s,\n", def.Name, renderLiteral(def))
		}
		fmt.Fprintf(&sb, "}\n")
	}

	// (b) Each extracted region as a mandatory-content insertion point.
	fmt.Fprintf(&sb, "\n## MANDATORY LOGIC REGIONS ##\n")
	fmt.Fprintf(&sb, "Each region below MUST appear in the output under its label. It must not be replaced by a stub, a no-op, or a deferred-work comment.\n")
	for _, d := range spec.Directives {
		fmt.Fprintf(&sb, "\n### region: %s (minimum %d characters) ###\n", d.Label, d.MinLength)
		fmt.Fprintf(&sb, "%s\n", d.Verbatim)
	}

	// (c) The selected architecture skeleton with named insertion slots.
	fmt.Fprintf(&sb, "\n## TARGET SKELETON: %s ##\n", template.ID)
	fmt.Fprintf(&sb, "The output must define each of these stage entry points exactly once:\n")
	for _, stage := range template.Stages {
		fmt.Fprintf(&sb, "- def %s(...)\n", stage)
	}
	fmt.Fprintf(&sb, "Insertion slots, by label:\n")
	for _, d := range spec.Directives {
		fmt.Fprintf(&sb, "- slot %q: the region %q above, inserted complete\n", d.Label, d.Label)
	}

	// (d) The enumerated forbidden-output patterns and the length floor.
	fmt.Fprintf(&sb, "\n## FORBIDDEN OUTPUT PATTERNS ##\n")
	for _, p := range spec.ForbiddenPatterns {
		fmt.Fprintf(&sb, "- %s\n", p)
	}
	fmt.Fprintf(&sb, "Each inserted region must be at least %.0f%% of its original length.\n", spec.MinLengthRatio*100)

	if len(feedback) > 0 {
		fmt.Fprintf(&sb, "\n## PRIOR ATTEMPT VIOLATIONS (fix every one) ##\n")
		for _, v := range feedback {
			fmt.Fprintf(&sb, "- [%s]", v.Rule)
			if v.RegionLabel != "" {
				fmt.Fprintf(&sb, " region %q:", v.RegionLabel)
			}
			if v.Parameter != "" {
				fmt.Fprintf(&sb, " parameter %q:", v.Parameter)
			}
			fmt.Fprintf(&sb, " %s\n", v.Detail)
		}
	}

	return sb.String()
}

// renderLiteral emits the parameter in the source dialect's spelling; the
// normalized forms stored at extraction time are not valid Python literals.
func renderLiteral(def schemas.ParameterDefinition) string {
	switch def.Kind {
	case schemas.KindString:
		return fmt.Sprintf("%q", def.LiteralValue)
	case schemas.KindBool:
		if def.LiteralValue == "true" {
			return "True"
		}
		return "False"
	case schemas.KindNull:
		return "None"
	}
	return def.LiteralValue
}
