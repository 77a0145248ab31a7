package schemas

import "errors"

// Fatal error classes of the transformation pipeline. Everything else in the
// taxonomy is absorbed internally: parameter parse failures degrade to an
// empty ParameterSet, missing helpers are omitted, and generation or
// compliance failures flow through the bounded retry path.
var (
	// ErrInputUnusable means the primary detection routine could not be found
	// under any accepted alias. The pipeline aborts before synthesis.
	ErrInputUnusable = errors.New("input unusable: primary detection routine not found")

	// ErrSynthesisInvariant means the synthesizer produced a directive count
	// that does not match the extracted region count. This is an internal bug
	// class and aborts before any generation attempt.
	ErrSynthesisInvariant = errors.New("synthesis invariant violation: directive count does not match extracted regions")
)
