// Package controller drives the bounded, feedback-augmented retry loop:
// Synthesizing -> Generating -> Validating -> {Accepted | Retrying |
// Exhausted}. Every terminal result is either fully compliant or explicitly
// and completely reported as failed; no state permits a degraded accept.
package controller

import (
	"context"
	"time"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/synth"
	"github.com/scanforge/scanforge/internal/transform/validate"
	"go.uber.org/zap"
)

// State names one phase of the retry loop.
type State string

const (
	StateSynthesizing State = "synthesizing"
	StateGenerating   State = "generating"
	StateValidating   State = "validating"
	StateAccepted     State = "accepted"
	StateRetrying     State = "retrying"
	StateExhausted    State = "exhausted"
)

// Controller coordinates generation and validation attempts.
type Controller struct {
	logger            *zap.Logger
	generator         schemas.LLMClient
	validator         *validate.Validator
	maxAttempts       int
	generationTimeout time.Duration
}

// New creates a Controller. maxAttempts bounds the retry budget and is
// clamped to a minimum of one; the generation timeout applies per attempt,
// and a timed-out attempt counts against the budget like any other failed
// one.
func New(logger *zap.Logger, generator schemas.LLMClient, validator *validate.Validator, maxAttempts int, generationTimeout time.Duration) *Controller {
	if maxAttempts < 1 {
		logger.Warn("Non-positive attempt budget clamped to one.",
			zap.Int("max_attempts", maxAttempts))
		maxAttempts = 1
	}
	return &Controller{
		logger:            logger.Named("controller"),
		generator:         generator,
		validator:         validator,
		maxAttempts:       maxAttempts,
		generationTimeout: generationTimeout,
	}
}

// Run executes the retry loop for one immutable spec and returns the terminal
// TransformationResult. A cancelled context aborts the submission without
// producing a result; the caller must discard all attempt state.
func (c *Controller) Run(ctx context.Context, spec *schemas.TransformationSpec) (*schemas.TransformationResult, error) {
	var attempts []schemas.GenerationAttempt
	var feedback []schemas.Violation

	c.transition(StateSynthesizing, StateGenerating, 1)

	for index := 1; index <= c.maxAttempts; index++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, genErr := c.generate(ctx, spec, feedback)
		if ctx.Err() != nil {
			// Caller-initiated cancellation, not a collaborator failure.
			return nil, ctx.Err()
		}

		c.transition(StateGenerating, StateValidating, index)

		var attempt schemas.GenerationAttempt
		if genErr != nil {
			// Collaborator timeout or error: synthesize a single-violation
			// report and proceed exactly as if validation failed. The attempt
			// is never retried outside the bounded budget.
			c.logger.Warn("Generation attempt failed before validation.",
				zap.Int("attempt", index), zap.Error(genErr))
			attempt = schemas.GenerationAttempt{
				Index:   index,
				Outcome: schemas.OutcomeGenFailed,
				Report: schemas.NewComplianceReport([]schemas.Violation{{
					Rule:   schemas.RuleGenerationFailure,
					Detail: genErr.Error(),
				}}),
			}
		} else {
			report := c.validator.Validate(spec, candidate)
			outcome := schemas.OutcomeRejected
			if report.Passed {
				outcome = schemas.OutcomePassed
			}
			attempt = schemas.GenerationAttempt{
				Index:         index,
				CandidateText: candidate,
				Outcome:       outcome,
				Report:        report,
			}
		}
		attempts = append(attempts, attempt)

		if attempt.Report.Passed {
			c.transition(StateValidating, StateAccepted, index)
			return &schemas.TransformationResult{
				Status:       schemas.StatusAccepted,
				Output:       attempt.CandidateText,
				AttemptCount: index,
				Report:       attempt.Report,
				Attempts:     attempts,
			}, nil
		}

		feedback = attempt.Report.Violations
		if index < c.maxAttempts {
			c.transition(StateValidating, StateRetrying, index)
			c.logger.Info("Attempt rejected; retrying with violation feedback.",
				zap.Int("attempt", index),
				zap.Int("violations", len(feedback)))
		}
	}

	c.transition(StateValidating, StateExhausted, c.maxAttempts)
	last := attempts[len(attempts)-1]
	return &schemas.TransformationResult{
		Status:       schemas.StatusExhausted,
		AttemptCount: c.maxAttempts,
		Report:       last.Report,
		Guidance:     &schemas.GuidancePayload{Regions: spec.Regions},
		Attempts:     attempts,
	}, nil
}

func (c *Controller) generate(ctx context.Context, spec *schemas.TransformationSpec, feedback []schemas.Violation) (string, error) {
	genCtx, cancel := context.WithTimeout(ctx, c.generationTimeout)
	defer cancel()

	req := schemas.GenerationRequest{
		SystemPrompt: synth.SystemPrompt(),
		UserPrompt:   synth.RenderPrompt(spec, feedback),
		Tier:         schemas.TierPowerful,
		Options: schemas.GenerationOptions{
			Temperature: 0.1,
		},
	}
	return c.generator.Generate(genCtx, req)
}

func (c *Controller) transition(from, to State, attempt int) {
	c.logger.Debug("State transition.",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Int("attempt", attempt))
}
