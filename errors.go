package coverid

import (
	"errors"

	"github.com/hupe1980/coverid/aggregate"
	"github.com/hupe1980/coverid/config"
	"github.com/hupe1980/coverid/ranking"
)

var (
	// ErrMissingInput is returned before any work starts when a required
	// input is absent.
	ErrMissingInput = config.ErrMissingInput

	// ErrQueryOverflow is returned when the corpus holds more queries than
	// the configured result capacity.
	ErrQueryOverflow = ranking.ErrQueryOverflow

	// ErrNoCodes is returned when evaluation finds no valid code rows.
	ErrNoCodes = errors.New("no valid codes to evaluate")
)

// AlignmentError reports diverging feature, track id and clique id counts.
type AlignmentError = aggregate.AlignmentError
