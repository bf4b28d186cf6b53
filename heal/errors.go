package heal

import "errors"

var (
	// ErrHealExhausted is the only heal error surfaced to a run: every
	// proposal was rejected, the cache is unchanged.
	ErrHealExhausted = errors.New("heal: exhausted")

	// ErrNoProposal is returned by a Proposer with nothing to suggest.
	ErrNoProposal = errors.New("heal: no proposal")

	// ErrAmbiguousMatch rejects a proposal that resolves to more than one
	// element.
	ErrAmbiguousMatch = errors.New("heal: ambiguous match")

	// ErrZeroMatch rejects a proposal that resolves to nothing.
	ErrZeroMatch = errors.New("heal: proposal matched nothing")

	// ErrNoCrawler means no fresh DOM could be obtained for diagnosis.
	ErrNoCrawler = errors.New("heal: no crawler configured")
)
