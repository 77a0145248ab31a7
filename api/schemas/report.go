package schemas

// ComplianceRule identifies one of the validator's rule families.
type ComplianceRule string

const (
	RuleRequiredSymbol    ComplianceRule = "required_symbol"
	RuleParameterFidelity ComplianceRule = "parameter_fidelity"
	RuleAntiPlaceholder   ComplianceRule = "anti_placeholder"
	RuleMinimumLength     ComplianceRule = "minimum_length"
	RuleStructuralPurity  ComplianceRule = "structural_purity"
	// RuleGenerationFailure is synthesized by the retry controller when the
	// collaborator errors or times out, so the failure flows through the
	// ordinary retry path.
	RuleGenerationFailure ComplianceRule = "generation_failure"
)

// Violation is one concrete rule breach found in a generation candidate.
type Violation struct {
	Rule        ComplianceRule `json:"rule"`
	Detail      string         `json:"detail"`
	RegionLabel string         `json:"region_label,omitempty"`
	Parameter   string         `json:"parameter,omitempty"`
}

// ComplianceReport is the static verdict over one candidate. Passed is true
// iff Violations is empty; there is no partial-credit acceptance.
type ComplianceReport struct {
	Passed     bool        `json:"passed"`
	Violations []Violation `json:"violations"`
}

// NewComplianceReport builds a report from the collected violations.
func NewComplianceReport(violations []Violation) ComplianceReport {
	return ComplianceReport{
		Passed:     len(violations) == 0,
		Violations: violations,
	}
}
