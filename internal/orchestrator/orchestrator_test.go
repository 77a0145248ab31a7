package orchestrator

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/config"
)

const legacyScanner = `import pandas as pd

PARAMS = {
    "price_min": 8.0,
    "adv20_min_usd": 30000000,
    "enforce_flag": True,
}

def compute_adv(df, window=20):
    dollar_vol = df["close"] * df["volume"]
    avg = dollar_vol.rolling(window).mean()
    return avg

def detect_setups(universe, history):
    results = []
    for symbol in universe:
        df = history[symbol]
        adv = compute_adv(df)
        if PARAMS["enforce_flag"] and adv.iloc[-1] >= PARAMS["adv20_min_usd"]:
            if df["close"].iloc[-1] >= PARAMS["price_min"]:
                results.append(symbol)
    return results

def main_loop():
    while True:
        detect_setups(load(), fetch())
`

// echoGenerator builds its candidate from the prompt itself: it reproduces
// the PARAMS block and every mandatory region verbatim inside the required
// skeleton, which is exactly what a cooperative collaborator would do.
type echoGenerator struct {
	mu      sync.Mutex
	prompts []string
	mangle  func(candidate string) string
}

func (g *echoGenerator) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, req.UserPrompt)
	g.mu.Unlock()

	var sb strings.Builder
	sb.WriteString(extractSection(req.UserPrompt, "PARAMS = {", "}\n"))
	sb.WriteString("\ndef load_universe():\n    return sorted(set(load_watchlist()))\n")
	sb.WriteString("\ndef fetch_history(universe):\n    return {s: load_bars(s) for s in universe}\n")
	sb.WriteString("\ndef compute_features(history):\n    return {s: enrich(df) for s, df in history.items()}\n")

	for _, region := range extractRegions(req.UserPrompt) {
		sb.WriteString("\n" + region + "\n")
	}

	sb.WriteString("\ndef evaluate_symbol(symbol, features):\n    return detect_setups([symbol], features)\n")
	sb.WriteString("\ndef emit_signals(hits):\n    for hit in hits:\n        publish(hit)\n")

	candidate := sb.String()
	if g.mangle != nil {
		candidate = g.mangle(candidate)
	}
	return candidate, nil
}

func (g *echoGenerator) Close() error { return nil }

// extractSection returns the prompt text from the start marker through the
// first subsequent occurrence of end at the start of a line.
func extractSection(prompt, start, end string) string {
	from := strings.Index(prompt, start)
	if from < 0 {
		return ""
	}
	rest := prompt[from:]
	to := strings.Index(rest, end)
	if to < 0 {
		return rest
	}
	return rest[:to+len(end)]
}

// extractRegions pulls every verbatim region block out of the prompt's
// mandatory-regions section.
func extractRegions(prompt string) []string {
	var regions []string
	rest := prompt
	for {
		header := strings.Index(rest, "### region: ")
		if header < 0 {
			return regions
		}
		rest = rest[header:]
		bodyStart := strings.Index(rest, "###\n")
		if bodyStart < 0 {
			return regions
		}
		rest = rest[bodyStart+len("###\n"):]

		bodyEnd := strings.Index(rest, "\n\n")
		if bodyEnd < 0 {
			bodyEnd = len(rest)
		}
		regions = append(regions, strings.TrimRight(rest[:bodyEnd], "\n"))
		rest = rest[bodyEnd:]
	}
}

type memoryStore struct {
	mu      sync.Mutex
	records []schemas.HistoryRecord
}

func (s *memoryStore) AppendResult(ctx context.Context, rec schemas.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) GetByFingerprint(ctx context.Context, fingerprint string) ([]schemas.HistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []schemas.HistoryRecord
	for _, rec := range s.records {
		if rec.Fingerprint == fingerprint {
			out = append(out, rec)
		}
	}
	return out, nil
}

func newOrchestrator(t *testing.T, generator schemas.LLMClient, store schemas.HistoryStore) *Orchestrator {
	t.Helper()
	orch, err := New(config.NewDefaultConfig(), zaptest.NewLogger(t), generator, store)
	require.NoError(t, err)
	return orch
}

func TestTransform(t *testing.T) {
	ctx := context.Background()

	t.Run("cooperative generation is accepted on the first attempt", func(t *testing.T) {
		store := &memoryStore{}
		orch := newOrchestrator(t, &echoGenerator{}, store)

		result, err := orch.Transform(ctx, SubmissionRequest{Source: legacyScanner})
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Equal(t, 1, result.AttemptCount)
		assert.True(t, result.Report.Passed)

		// The output carries the parameters and both regions verbatim.
		assert.Contains(t, result.Output, `"price_min": 8.0,`)
		assert.Contains(t, result.Output, `"adv20_min_usd": 30000000,`)
		assert.Contains(t, result.Output, "def detect_setups(universe, history):")
		assert.Contains(t, result.Output, "def compute_adv(df, window=20):")
		assert.NotContains(t, result.Output, "def main_loop", "legacy entry points must not survive")

		// Terminal results are persisted under the document fingerprint.
		fingerprint := schemas.NewSourceDocument(legacyScanner).Fingerprint()
		records, err := store.GetByFingerprint(ctx, fingerprint)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, schemas.StatusAccepted, records[0].Status)
	})

	t.Run("missing detection routine is unusable input", func(t *testing.T) {
		orch := newOrchestrator(t, &echoGenerator{}, nil)

		_, err := orch.Transform(ctx, SubmissionRequest{Source: "import os\n\nx = 1\n"})
		require.Error(t, err)
		assert.ErrorIs(t, err, schemas.ErrInputUnusable)
		assert.Contains(t, err.Error(), "detect_setups", "the error should name the aliases tried")
	})

	t.Run("alias overrides replace the configured candidates", func(t *testing.T) {
		source := strings.ReplaceAll(legacyScanner, "detect_setups", "find_breakouts")
		orch := newOrchestrator(t, &echoGenerator{}, nil)

		result, err := orch.Transform(ctx, SubmissionRequest{
			Source:           source,
			DetectionAliases: []string{"find_breakouts"},
		})
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Contains(t, result.Output, "def find_breakouts")
	})

	t.Run("redefined helper transforms cleanly with the first body", func(t *testing.T) {
		source := legacyScanner + `
def compute_adv(df, window=20):
    return df["volume"].tail(window).mean()
`
		orch := newOrchestrator(t, &echoGenerator{}, nil)

		result, err := orch.Transform(ctx, SubmissionRequest{Source: source})
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusAccepted, result.Status)
		assert.Contains(t, result.Output, "dollar_vol")
		assert.NotContains(t, result.Output, "tail(window)")
	})

	t.Run("stubbing generator exhausts the attempt budget with guidance", func(t *testing.T) {
		mangler := &echoGenerator{mangle: func(candidate string) string {
			// Replace the detection body with a bare pass, attempt after attempt.
			start := strings.Index(candidate, "def detect_setups")
			if start < 0 {
				return candidate
			}
			end := strings.Index(candidate[start:], "\n\n")
			if end < 0 {
				end = len(candidate) - start
			}
			return candidate[:start] + "def detect_setups(universe, history):\n    pass" + candidate[start+end:]
		}}
		store := &memoryStore{}
		orch := newOrchestrator(t, mangler, store)

		result, err := orch.Transform(ctx, SubmissionRequest{Source: legacyScanner})
		require.NoError(t, err)

		assert.Equal(t, schemas.StatusExhausted, result.Status)
		assert.Equal(t, 3, result.AttemptCount)
		assert.Empty(t, result.Output)
		require.NotNil(t, result.Guidance)

		labels := make([]string, 0, len(result.Guidance.Regions))
		for _, region := range result.Guidance.Regions {
			labels = append(labels, region.Label)
		}
		assert.Contains(t, labels, "detect_setups")
		assert.Contains(t, labels, "compute_adv")

		// Retry prompts carry the prior violations forward.
		require.Len(t, mangler.prompts, 3)
		assert.Contains(t, mangler.prompts[1], "PRIOR ATTEMPT VIOLATIONS")
		assert.Contains(t, mangler.prompts[2], string(schemas.RuleAntiPlaceholder))

		// Exhausted runs are history rows too.
		fingerprint := schemas.NewSourceDocument(legacyScanner).Fingerprint()
		records, err := store.GetByFingerprint(ctx, fingerprint)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, schemas.StatusExhausted, records[0].Status)
		require.NotNil(t, records[0].Guidance)
	})

	t.Run("nil dependencies are rejected at construction", func(t *testing.T) {
		_, err := New(nil, zaptest.NewLogger(t), &echoGenerator{}, nil)
		assert.Error(t, err)

		_, err = New(config.NewDefaultConfig(), zaptest.NewLogger(t), nil, nil)
		assert.Error(t, err)
	})
}
