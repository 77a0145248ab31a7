package schemas

// AttemptOutcome is the terminal state of a single generation attempt.
type AttemptOutcome string

const (
	OutcomePassed    AttemptOutcome = "passed"
	OutcomeRejected  AttemptOutcome = "rejected"
	OutcomeGenFailed AttemptOutcome = "generation_failed"
)

// GenerationAttempt records one cycle through the retry loop. Attempts are
// appended to the result's list and never edited in place.
type GenerationAttempt struct {
	Index         int              `json:"index"`
	CandidateText string           `json:"candidate_text,omitempty"`
	Outcome       AttemptOutcome   `json:"outcome"`
	Report        ComplianceReport `json:"report"`
}

// ResultStatus is the terminal status of a submission.
type ResultStatus string

const (
	StatusAccepted  ResultStatus = "accepted"
	StatusExhausted ResultStatus = "exhausted"
)

// GuidancePayload carries the original verbatim extracted logic so a human
// can complete the transplant manually after an exhausted run.
type GuidancePayload struct {
	Regions []LogicRegion `json:"regions"`
}

// TransformationResult is the terminal record of one submission, created
// exactly once and immutable afterwards. Accepted results carry the fully
// compliant output; exhausted results carry the last report and the guidance
// payload. Nothing in between is ever returned.
type TransformationResult struct {
	Status       ResultStatus        `json:"status"`
	Output       string              `json:"output,omitempty"`
	AttemptCount int                 `json:"attempt_count"`
	Report       ComplianceReport    `json:"report"`
	Guidance     *GuidancePayload    `json:"guidance,omitempty"`
	Attempts     []GenerationAttempt `json:"attempts,omitempty"`
}
