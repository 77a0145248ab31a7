package schemas

import (
	"context"
	"time"
)

// -- LLM Client Schemas & Interface --

// ModelTier allows selecting a model based on a preference for speed versus
// capability. Generation attempts always use the powerful tier; the fast tier
// exists for lightweight auxiliary calls.
type ModelTier string

const (
	TierFast     ModelTier = "fast"
	TierPowerful ModelTier = "powerful"
)

// GenerationOptions controls the text generation process.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	TopP            float64 `json:"top_p"`
	TopK            int     `json:"top_k"`
}

// GenerationRequest encapsulates one complete request to the collaborator.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Tier         ModelTier         `json:"tier"`
	Options      GenerationOptions `json:"options"`
}

// LLMClient abstracts the generation collaborator. The pipeline treats it as
// an opaque, potentially non-deterministic text-completion function.
type LLMClient interface {
	// Generate produces a text completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- Transform History --

// HistoryRecord is one append-only row of the transform history log, keyed by
// the SHA-256 fingerprint of the submitted document.
type HistoryRecord struct {
	ID           string           `json:"id"`
	Fingerprint  string           `json:"fingerprint"`
	Status       ResultStatus     `json:"status"`
	AttemptCount int              `json:"attempt_count"`
	Report       ComplianceReport `json:"report"`
	Guidance     *GuidancePayload `json:"guidance,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// HistoryStore is the append-only persistence contract for terminal results.
// Rows are inserted once and never updated in place.
type HistoryStore interface {
	AppendResult(ctx context.Context, rec HistoryRecord) error
	GetByFingerprint(ctx context.Context, fingerprint string) ([]HistoryRecord, error)
}
