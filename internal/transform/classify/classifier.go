// Package classify scores a source document against a small fixed library of
// architecture fingerprints and selects the canonical pipeline skeleton the
// extracted logic belongs to. Classification is a pure function of the
// document; identical input always yields an identical profile.
package classify

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/scanforge/scanforge/api/schemas"
	"go.uber.org/zap"
)

// indicator is one weighted structural signal.
type indicator struct {
	name    string
	weight  float64
	present func(content string) bool
}

var (
	perEntityLoopRe  = regexp.MustCompile(`for\s+\w+\s+in\s+(symbols|universe|tickers|watchlist)\b`)
	parallelMapRe    = regexp.MustCompile(`ThreadPoolExecutor|ProcessPoolExecutor|Pool\s*\(|\.map\s*\(`)
	perSymbolCallRe  = regexp.MustCompile(`\w+\s*\(\s*symbol\b`)
	maskAssignRe     = regexp.MustCompile(`(?m)^\s*(?:mask_\w+|\w+_mask)\s*=`)
	groupByRe        = regexp.MustCompile(`\.groupby\s*\(`)
	frameBoolOpRe    = regexp.MustCompile(`\w+\[[^\]]+\]\s*[&|]|[&|]\s*\(\s*\w+\[`)
	bulkDownloadRe   = regexp.MustCompile(`download\s*\(\s*(symbols|universe|tickers)\b`)
)

var singleEntityIndicators = []indicator{
	{"per_entity_loop", 0.5, perEntityLoopRe.MatchString},
	{"parallel_dispatch", 0.3, parallelMapRe.MatchString},
	{"per_symbol_call", 0.2, perSymbolCallRe.MatchString},
}

var vectorizedIndicators = []indicator{
	{"multiple_mask_blocks", 0.5, func(content string) bool {
		return len(maskAssignRe.FindAllStringIndex(content, -1)) > 1
	}},
	{"keyed_aggregation", 0.3, groupByRe.MatchString},
	{"frame_boolean_ops", 0.1, frameBoolOpRe.MatchString},
	{"bulk_fetch", 0.1, bulkDownloadRe.MatchString},
}

// Classifier assigns a StructuralProfile to documents. Profiles are memoized
// by content fingerprint since classification is deterministic.
type Classifier struct {
	logger    *zap.Logger
	threshold float64
	cache     *lru.Cache[string, schemas.StructuralProfile]
}

// New creates a Classifier with the given confidence threshold and cache size.
func New(logger *zap.Logger, threshold float64, cacheSize int) (*Classifier, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("confidence threshold must be in [0,1], got %v", threshold)
	}
	cache, err := lru.New[string, schemas.StructuralProfile](max(cacheSize, 1))
	if err != nil {
		return nil, fmt.Errorf("failed to create profile cache: %w", err)
	}
	return &Classifier{
		logger:    logger.Named("classify"),
		threshold: threshold,
		cache:     cache,
	}, nil
}

// Classify scores the document against every fingerprint and returns the
// highest-scoring profile, or Unknown when the top score is below the
// configured threshold.
func (c *Classifier) Classify(doc *schemas.SourceDocument) schemas.StructuralProfile {
	if profile, ok := c.cache.Get(doc.Fingerprint()); ok {
		return profile
	}

	content := doc.Content()
	singleScore := score(singleEntityIndicators, content)
	vectorScore := score(vectorizedIndicators, content)

	profile := schemas.StructuralProfile{Kind: schemas.KindUnknown}
	switch {
	case vectorScore >= c.threshold && vectorScore > singleScore:
		profile = schemas.StructuralProfile{
			Kind:              schemas.KindVectorizedMulti,
			MatchedTemplateID: vectorizedMultiTemplate.ID,
			Confidence:        vectorScore,
		}
	case singleScore >= c.threshold:
		profile = schemas.StructuralProfile{
			Kind:              schemas.KindSingleEntity,
			MatchedTemplateID: singleEntityTemplate.ID,
			Confidence:        singleScore,
		}
	default:
		profile.Confidence = maxFloat(singleScore, vectorScore)
	}

	c.logger.Debug("Classified document structure.",
		zap.String("fingerprint", doc.Fingerprint()[:12]),
		zap.String("kind", string(profile.Kind)),
		zap.Float64("single_entity_score", singleScore),
		zap.Float64("vectorized_score", vectorScore))

	c.cache.Add(doc.Fingerprint(), profile)
	return profile
}

func score(indicators []indicator, content string) float64 {
	var total, hit float64
	for _, ind := range indicators {
		total += ind.weight
		if ind.present(content) {
			hit += ind.weight
		}
	}
	if total == 0 {
		return 0
	}
	return hit / total
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
