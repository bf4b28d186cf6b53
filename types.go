package relocator

import (
	"errors"

	"github.com/hazyhaar/relocator/internal/store"
	"github.com/hazyhaar/relocator/locator"
	"github.com/hazyhaar/relocator/snapshot"
)

// Re-exported types so callers do not import internal packages.
type (
	Entry           = store.Entry
	Dump            = store.Dump
	Stats           = store.Stats
	ElementSnapshot = snapshot.ElementSnapshot
	Union           = locator.Union
	Candidate       = locator.Candidate
)

// ErrWriteConflict is returned by cache writes that lost a race.
var ErrWriteConflict = store.ErrWriteConflict

// ErrNoMatch is returned when an expression naming a recorded element
// matches nothing.
var ErrNoMatch = errors.New("relocator: expression matches nothing")
