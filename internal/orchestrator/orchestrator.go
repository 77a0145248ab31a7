// Package orchestrator runs one submission through the full workflow:
// extraction, classification, synthesis, the bounded generation loop, and
// history persistence. Each submission is a single sequential workflow with
// no internal parallelism; the only suspension point is the collaborator
// call. Independent submissions share nothing.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/config"
	"github.com/scanforge/scanforge/internal/transform/blockscan"
	"github.com/scanforge/scanforge/internal/transform/classify"
	"github.com/scanforge/scanforge/internal/transform/controller"
	"github.com/scanforge/scanforge/internal/transform/extract"
	"github.com/scanforge/scanforge/internal/transform/synth"
	"github.com/scanforge/scanforge/internal/transform/validate"
)

// SubmissionRequest is one uploaded scanner plus optional overrides of the
// two candidate-name lists. Empty overrides fall back to configuration.
type SubmissionRequest struct {
	Source           string   `json:"source"`
	DetectionAliases []string `json:"detection_aliases,omitempty"`
	HelperNames      []string `json:"helper_names,omitempty"`
}

// Orchestrator owns the per-submission pipeline components.
type Orchestrator struct {
	cfg         *config.Config
	logger      *zap.Logger
	extractor   *extract.Extractor
	classifier  *classify.Classifier
	synthesizer *synth.Synthesizer
	ctrl        *controller.Controller
	store       schemas.HistoryStore // nil disables persistence
}

// New wires the pipeline. The generator is the only external collaborator;
// the store may be nil.
func New(cfg *config.Config, logger *zap.Logger, generator schemas.LLMClient, store schemas.HistoryStore) (*Orchestrator, error) {
	if cfg == nil || logger == nil || generator == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}

	classifier, err := classify.New(logger, cfg.Pipeline.ConfidenceThreshold, cfg.Pipeline.ProfileCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}

	validator := validate.New(logger,
		cfg.Pipeline.ConfigAnchors,
		cfg.Pipeline.StubComments,
		cfg.Pipeline.LegacyEntryPoints)

	synthesizer := synth.New(logger, cfg.Pipeline.MinLengthRatio, forbiddenPatterns(cfg))

	return &Orchestrator{
		cfg:         cfg,
		logger:      logger.Named("orchestrator"),
		extractor:   extract.New(logger),
		classifier:  classifier,
		synthesizer: synthesizer,
		ctrl:        controller.New(logger, generator, validator, cfg.Pipeline.MaxAttempts, cfg.Pipeline.GenerationTimeout),
		store:       store,
	}, nil
}

// Transform runs one submission to its terminal TransformationResult. A
// cancelled context discards all in-flight attempt state and returns the
// context error; a cancelled submission never produces a result or a history
// row.
func (o *Orchestrator) Transform(ctx context.Context, req SubmissionRequest) (*schemas.TransformationResult, error) {
	doc := schemas.NewSourceDocument(req.Source)
	table := blockscan.Scan(doc.Content())

	aliases := req.DetectionAliases
	if len(aliases) == 0 {
		aliases = o.cfg.Pipeline.DetectionAliases
	}
	helpers := req.HelperNames
	if len(helpers) == 0 {
		helpers = o.cfg.Pipeline.HelperNames
	}

	params := o.extractor.ExtractParameters(doc, table, o.cfg.Pipeline.ConfigAnchors)

	primary, found := o.extractor.ExtractLogicRegion(doc, table, aliases)
	if !found {
		// The one extraction-time fatal condition: without the detection
		// routine there is nothing worth transforming.
		return nil, fmt.Errorf("%w (aliases tried: %v)", schemas.ErrInputUnusable, aliases)
	}

	regions := append([]schemas.LogicRegion{primary},
		o.extractor.ExtractHelperFunctions(doc, table, helpers, []schemas.LogicRegion{primary})...)

	profile := o.classifier.Classify(doc)

	o.logger.Info("Submission extracted and classified.",
		zap.String("fingerprint", doc.Fingerprint()[:12]),
		zap.Int("parameters", params.Len()),
		zap.Int("regions", len(regions)),
		zap.String("structure", string(profile.Kind)),
		zap.Float64("confidence", profile.Confidence))

	spec, err := o.synthesizer.Synthesize(params, regions, profile)
	if err != nil {
		return nil, err
	}

	result, err := o.ctrl.Run(ctx, spec)
	if err != nil {
		return nil, err
	}

	o.persist(ctx, doc, result)
	return result, nil
}

// persist appends the terminal result to the history log. Persistence is
// best-effort: a failed append is logged and the result still returns.
func (o *Orchestrator) persist(ctx context.Context, doc *schemas.SourceDocument, result *schemas.TransformationResult) {
	if o.store == nil {
		return
	}

	rec := schemas.HistoryRecord{
		ID:           uuid.New().String(),
		Fingerprint:  doc.Fingerprint(),
		Status:       result.Status,
		AttemptCount: result.AttemptCount,
		Report:       result.Report,
		Guidance:     result.Guidance,
		CreatedAt:    time.Now().UTC(),
	}
	if err := o.store.AppendResult(ctx, rec); err != nil {
		o.logger.Warn("Failed to append transform history.",
			zap.String("fingerprint", rec.Fingerprint), zap.Error(err))
	}
}

// forbiddenPatterns renders the configured stub catalogue into the
// human-readable enumeration embedded in the generation instruction.
func forbiddenPatterns(cfg *config.Config) []string {
	patterns := []string{
		"a function body that only returns its input unchanged",
		"a function body consisting solely of pass or ...",
		"raise NotImplementedError in place of logic",
	}
	for _, kw := range cfg.Pipeline.StubComments {
		patterns = append(patterns, fmt.Sprintf("a comment containing %q as the only body content", kw))
	}
	return patterns
}
