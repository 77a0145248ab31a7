package schemas

import (
	"crypto/sha256"
	"encoding/hex"
)

// SourceDocument is the raw uploaded scanner text. It is created once per
// submission and never mutated; every downstream component works from the
// same immutable content.
type SourceDocument struct {
	content     string
	fingerprint string
}

// NewSourceDocument wraps raw source text in an immutable document.
func NewSourceDocument(content string) *SourceDocument {
	sum := sha256.Sum256([]byte(content))
	return &SourceDocument{
		content:     content,
		fingerprint: hex.EncodeToString(sum[:]),
	}
}

// Content returns the full source text.
func (d *SourceDocument) Content() string { return d.content }

// Len returns the document length in bytes.
func (d *SourceDocument) Len() int { return len(d.content) }

// Fingerprint returns the hex-encoded SHA-256 of the content. The transform
// history log is keyed by this value.
func (d *SourceDocument) Fingerprint() string { return d.fingerprint }
