// Package validate statically checks a generation candidate against the
// transformation spec's preservation contracts. Nothing is ever executed; the
// verdict comes from the same line-classification machinery used at
// extraction time, applied to the candidate text.
package validate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/blockscan"
	"github.com/scanforge/scanforge/internal/transform/classify"
	"github.com/scanforge/scanforge/internal/transform/extract"
	"go.uber.org/zap"
)

// Validator inspects candidates against the five rule families.
type Validator struct {
	logger       *zap.Logger
	extractor    *extract.Extractor
	anchors      []string
	stubComments []string
	legacyNames  []string
}

// New creates a Validator. The anchors locate the candidate's configuration
// container; stubComments and legacyNames are the configured heuristic
// catalogues.
func New(logger *zap.Logger, anchors, stubComments, legacyNames []string) *Validator {
	return &Validator{
		logger:       logger.Named("validate"),
		extractor:    extract.New(logger),
		anchors:      anchors,
		stubComments: stubComments,
		legacyNames:  legacyNames,
	}
}

// Validate computes the compliance report for one candidate. The report
// passes iff no rule family produced a violation.
func (v *Validator) Validate(spec *schemas.TransformationSpec, candidate string) schemas.ComplianceReport {
	doc := schemas.NewSourceDocument(candidate)
	table := blockscan.Scan(candidate)

	var violations []schemas.Violation
	violations = append(violations, v.checkRequiredSymbols(spec, table)...)
	violations = append(violations, v.checkParameterFidelity(spec, doc, table)...)
	violations = append(violations, v.checkRegions(spec, doc, table)...)
	violations = append(violations, v.checkStructuralPurity(table)...)

	report := schemas.NewComplianceReport(violations)
	v.logger.Debug("Candidate validated.",
		zap.Bool("passed", report.Passed),
		zap.Int("violations", len(report.Violations)))
	return report
}

// checkRequiredSymbols verifies every canonical stage entry point of the
// selected skeleton appears exactly once, by name.
func (v *Validator) checkRequiredSymbols(spec *schemas.TransformationSpec, table *blockscan.Table) []schemas.Violation {
	var violations []schemas.Violation
	for _, stage := range classify.StagesFor(spec.Profile.EffectiveKind()) {
		switch count := len(table.Openers(stage)); {
		case count == 0:
			violations = append(violations, schemas.Violation{
				Rule:   schemas.RuleRequiredSymbol,
				Detail: fmt.Sprintf("required stage entry point %q is missing", stage),
			})
		case count > 1:
			violations = append(violations, schemas.Violation{
				Rule:   schemas.RuleRequiredSymbol,
				Detail: fmt.Sprintf("stage entry point %q appears %d times, expected exactly once", stage, count),
			})
		}
	}
	return violations
}

// checkParameterFidelity verifies every extracted parameter appears in the
// candidate's configuration block with an exactly-equal literal value. Each
// missing or altered parameter is reported individually.
func (v *Validator) checkParameterFidelity(spec *schemas.TransformationSpec, doc *schemas.SourceDocument, table *blockscan.Table) []schemas.Violation {
	var violations []schemas.Violation
	candidateParams := v.extractor.ExtractParameters(doc, table, v.anchors)

	for _, want := range spec.Parameters.Definitions() {
		got, ok := candidateParams.Get(want.Name)
		if !ok {
			violations = append(violations, schemas.Violation{
				Rule:      schemas.RuleParameterFidelity,
				Parameter: want.Name,
				Detail:    fmt.Sprintf("parameter %q is missing from the configuration block", want.Name),
			})
			continue
		}
		if !literalsEqual(want, got) {
			violations = append(violations, schemas.Violation{
				Rule:      schemas.RuleParameterFidelity,
				Parameter: want.Name,
				Detail:    fmt.Sprintf("parameter %q altered: want %s, got %s", want.Name, want.LiteralValue, got.LiteralValue),
			})
		}
	}
	return violations
}

// literalsEqual compares literals by kind: numeric equality for numbers,
// case-sensitive equality for strings, boolean equality for bools.
func literalsEqual(want, got schemas.ParameterDefinition) bool {
	if want.Kind != got.Kind {
		return false
	}
	switch want.Kind {
	case schemas.KindNumber:
		a, errA := strconv.ParseFloat(want.LiteralValue, 64)
		b, errB := strconv.ParseFloat(got.LiteralValue, 64)
		return errA == nil && errB == nil && a == b
	case schemas.KindNull:
		return true
	default:
		return want.LiteralValue == got.LiteralValue
	}
}

// checkRegions applies the anti-placeholder and minimum-length rules to every
// mandatory insertion region in the candidate.
func (v *Validator) checkRegions(spec *schemas.TransformationSpec, doc *schemas.SourceDocument, table *blockscan.Table) []schemas.Violation {
	var violations []schemas.Violation

	for _, directive := range spec.Directives {
		region, found := v.extractor.ExtractLogicRegion(doc, table, []string{directive.Label})
		if !found {
			violations = append(violations, schemas.Violation{
				Rule:        schemas.RuleRequiredSymbol,
				RegionLabel: directive.Label,
				Detail:      fmt.Sprintf("mandatory region %q is absent from the candidate", directive.Label),
			})
			continue
		}

		if detail, stubbed := v.stubSignature(table, region); stubbed {
			violations = append(violations, schemas.Violation{
				Rule:        schemas.RuleAntiPlaceholder,
				RegionLabel: directive.Label,
				Detail:      detail,
			})
		}

		// Length is checked even absent an explicit stub match; it catches
		// paraphrase-driven truncation.
		if region.Length() < directive.MinLength {
			violations = append(violations, schemas.Violation{
				Rule:        schemas.RuleMinimumLength,
				RegionLabel: directive.Label,
				Detail: fmt.Sprintf("region %q is %d characters, minimum is %d",
					directive.Label, region.Length(), directive.MinLength),
			})
		}
	}
	return violations
}

// stubSignature scans a candidate region's body for the configured stub
// catalogue: a body that only returns its input unchanged, a trivial no-op,
// a raise of NotImplementedError, or a deferred-work comment as the only
// content.
func (v *Validator) stubSignature(table *blockscan.Table, region schemas.LogicRegion) (string, bool) {
	openerIdx := -1
	for i, line := range table.Lines {
		if line.StartOffset == region.StartOffset {
			openerIdx = i
			break
		}
	}
	if openerIdx < 0 {
		return "", false
	}

	bodyEnd := table.BodyEnd(openerIdx)
	var content []blockscan.Line
	var comments []blockscan.Line
	for i := openerIdx + 1; i < bodyEnd; i++ {
		line := table.Lines[i]
		switch {
		case line.IsBlank:
		case line.IsCommentOnly:
			comments = append(comments, line)
		default:
			content = append(content, line)
		}
	}

	if len(content) == 0 {
		for _, c := range comments {
			if v.deferredComment(c.Raw) {
				return "body contains only a deferred-work comment", true
			}
		}
		return "body contains no executable content", true
	}

	if len(content) == 1 {
		text := strings.TrimSpace(content[0].Raw)
		switch {
		case text == "pass" || text == "...":
			return "body is a trivial no-op", true
		case strings.HasPrefix(text, "raise NotImplementedError"):
			return "body raises NotImplementedError", true
		case returnsOwnInput(table.Lines[openerIdx].Raw, text):
			return "body returns its input unchanged", true
		}
	}

	return "", false
}

func (v *Validator) deferredComment(raw string) bool {
	lowered := strings.ToLower(raw)
	for _, keyword := range v.stubComments {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// returnsOwnInput reports whether a single `return x` statement hands back a
// parameter of the opening def unchanged.
func returnsOwnInput(opener, stmt string) bool {
	name, ok := strings.CutPrefix(stmt, "return ")
	if !ok {
		return false
	}
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, " .([{+-*/%") {
		return false
	}

	open := strings.Index(opener, "(")
	closing := strings.LastIndex(opener, ")")
	if open < 0 || closing <= open {
		return false
	}
	for _, param := range strings.Split(opener[open+1:closing], ",") {
		param = strings.TrimSpace(param)
		if eq := strings.Index(param, "="); eq >= 0 {
			param = strings.TrimSpace(param[:eq])
		}
		if colon := strings.Index(param, ":"); colon >= 0 {
			param = strings.TrimSpace(param[:colon])
		}
		if param == name {
			return true
		}
	}
	return false
}

// checkStructuralPurity rejects candidates that additionally expose
// legacy/bypass entry points circumventing the staged pipeline.
func (v *Validator) checkStructuralPurity(table *blockscan.Table) []schemas.Violation {
	var violations []schemas.Violation
	for _, legacy := range v.legacyNames {
		if len(table.Openers(legacy)) > 0 {
			violations = append(violations, schemas.Violation{
				Rule:   schemas.RuleStructuralPurity,
				Detail: fmt.Sprintf("legacy entry point %q bypasses the staged pipeline", legacy),
			})
		}
	}
	return violations
}
