package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/blockscan"
	"github.com/scanforge/scanforge/internal/transform/extract"
	"github.com/scanforge/scanforge/internal/transform/synth"
	"github.com/scanforge/scanforge/internal/transform/validate"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedClient returns canned responses in order, recording every prompt.
type scriptedClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
	calls     int
}

func (c *scriptedClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := c.calls
	c.calls++
	c.prompts = append(c.prompts, req.UserPrompt)

	if idx < len(c.errs) && c.errs[idx] != nil {
		return "", c.errs[idx]
	}
	if idx < len(c.responses) {
		return c.responses[idx], nil
	}
	return "", errors.New("scripted client exhausted")
}

func (c *scriptedClient) Close() error { return nil }

// blockingClient blocks until its context is cancelled.
type blockingClient struct{}

func (c *blockingClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (c *blockingClient) Close() error { return nil }

const detectionRoutine = `def detect_setups(universe, history):
    results = []
    for symbol in universe:
        df = history[symbol]
        if df["close"].iloc[-1] >= PARAMS["price_min"]:
            results.append(symbol)
    return results`

const compliantOutput = `PARAMS = {
    "price_min": 8.0,
}

def load_universe():
    return ["AAPL", "MSFT"]

def fetch_history(universe):
    return {s: load_bars(s) for s in universe}

def compute_features(history):
    return {s: enrich(df) for s, df in history.items()}

` + detectionRoutine + `

def evaluate_symbol(symbol, features):
    return detect_setups([symbol], features)

def emit_signals(hits):
    for hit in hits:
        publish(hit)
`

const stubOutput = `PARAMS = {
    "price_min": 8.0,
}

def load_universe():
    return []

def fetch_history(universe):
    return {}

def compute_features(history):
    return {}

def detect_setups(universe, history):
    pass

def evaluate_symbol(symbol, features):
    return []

def emit_signals(hits):
    pass
`

var (
	anchors      = []string{"PARAMS", "CONFIG", "SETTINGS"}
	stubComments = []string{"todo", "implement", "omitted", "rest of"}
	legacyNames  = []string{"main_loop", "run_legacy", "quick_scan", "scan_all_inline"}
)

func buildSpec(t *testing.T) *schemas.TransformationSpec {
	t.Helper()
	original := "PARAMS = {\n    \"price_min\": 8.0,\n}\n\n" + detectionRoutine + "\n"

	doc := schemas.NewSourceDocument(original)
	table := blockscan.Scan(doc.Content())
	extractor := extract.New(zaptest.NewLogger(t))

	params := extractor.ExtractParameters(doc, table, anchors)
	primary, found := extractor.ExtractLogicRegion(doc, table, []string{"detect_setups"})
	require.True(t, found)

	spec, err := synth.New(zaptest.NewLogger(t), 0.9, nil).Synthesize(
		params,
		[]schemas.LogicRegion{primary},
		schemas.StructuralProfile{Kind: schemas.KindSingleEntity, MatchedTemplateID: "single_entity_v1", Confidence: 0.7},
	)
	require.NoError(t, err)
	return spec
}

func newController(t *testing.T, client schemas.LLMClient, maxAttempts int) *Controller {
	t.Helper()
	validator := validate.New(zaptest.NewLogger(t), anchors, stubComments, legacyNames)
	return New(zaptest.NewLogger(t), client, validator, maxAttempts, 100*time.Millisecond)
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("first compliant candidate is accepted", func(t *testing.T) {
		client := &scriptedClient{responses: []string{compliantOutput}}
		result, err := newController(t, client, 3).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Equal(t, compliantOutput, result.Output)
		assert.Equal(t, 1, result.AttemptCount)
		assert.True(t, result.Report.Passed)
		assert.Nil(t, result.Guidance)
		require.Len(t, result.Attempts, 1)
		assert.Equal(t, schemas.OutcomePassed, result.Attempts[0].Outcome)
	})

	t.Run("rejected attempt retries with violation feedback in the next prompt", func(t *testing.T) {
		client := &scriptedClient{responses: []string{stubOutput, compliantOutput}}
		result, err := newController(t, client, 3).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Equal(t, 2, result.AttemptCount)
		require.Len(t, result.Attempts, 2)
		assert.Equal(t, schemas.OutcomeRejected, result.Attempts[0].Outcome)
		assert.Equal(t, schemas.OutcomePassed, result.Attempts[1].Outcome)

		require.Len(t, client.prompts, 2)
		assert.NotContains(t, client.prompts[0], "PRIOR ATTEMPT VIOLATIONS")
		assert.Contains(t, client.prompts[1], "PRIOR ATTEMPT VIOLATIONS")
		assert.Contains(t, client.prompts[1], string(schemas.RuleAntiPlaceholder))
	})

	t.Run("persistently non-compliant output exhausts the budget exactly", func(t *testing.T) {
		client := &scriptedClient{responses: []string{stubOutput, stubOutput, stubOutput, stubOutput}}
		result, err := newController(t, client, 3).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusExhausted, result.Status)
		assert.Equal(t, 3, result.AttemptCount)
		assert.Equal(t, 3, client.calls, "budget must be spent exactly, never exceeded")
		assert.False(t, result.Report.Passed)
		assert.Len(t, result.Attempts, 3)

		require.NotNil(t, result.Guidance, "exhausted results must carry the guidance payload")
		require.Len(t, result.Guidance.Regions, 1)
		assert.Equal(t, "detect_setups", result.Guidance.Regions[0].Label)
		assert.True(t, strings.HasPrefix(result.Guidance.Regions[0].RawText, "def detect_setups"))
	})

	t.Run("collaborator error becomes a generation-failure attempt, not a free retry", func(t *testing.T) {
		genErr := errors.New("model endpoint unavailable")
		client := &scriptedClient{
			errs:      []error{genErr, nil},
			responses: []string{"", compliantOutput},
		}
		result, err := newController(t, client, 3).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Equal(t, 2, result.AttemptCount)
		require.Len(t, result.Attempts, 2)

		first := result.Attempts[0]
		assert.Equal(t, schemas.OutcomeGenFailed, first.Outcome)
		assert.Empty(t, first.CandidateText)
		require.Len(t, first.Report.Violations, 1)
		assert.Equal(t, schemas.RuleGenerationFailure, first.Report.Violations[0].Rule)
		assert.Contains(t, first.Report.Violations[0].Detail, "model endpoint unavailable")
	})

	t.Run("per-attempt timeout counts against the budget", func(t *testing.T) {
		result, err := newController(t, &blockingClient{}, 2).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusExhausted, result.Status)
		assert.Equal(t, 2, result.AttemptCount)
		for _, attempt := range result.Attempts {
			assert.Equal(t, schemas.OutcomeGenFailed, attempt.Outcome)
		}
	})

	t.Run("non-positive budget is clamped to a single attempt", func(t *testing.T) {
		client := &scriptedClient{responses: []string{stubOutput, stubOutput}}
		result, err := newController(t, client, 0).Run(ctx, buildSpec(t))
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusExhausted, result.Status)
		assert.Equal(t, 1, result.AttemptCount)
		assert.Equal(t, 1, client.calls)
		require.Len(t, result.Attempts, 1)
	})

	t.Run("caller cancellation aborts without a result", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := newController(t, &blockingClient{}, 3).Run(cancelCtx, buildSpec(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result, "a cancelled submission must not produce a result")
	})

	t.Run("cancellation mid-generation discards attempt state", func(t *testing.T) {
		cancelCtx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()

		result, err := newController(t, &blockingClient{}, 3).Run(cancelCtx, buildSpec(t))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	})
}
