// Copyright (c) 2025 hitoshi.mukai.b@gmail.com. All rights reserved.
// You are free to use this source code for any purpose. The copyright remains with the author.
// The author accepts no liability for any damages arising from the use of this source code.
//
// Last modified: 2026.10.17
//

package goadjust

import (
	"errors"
	"fmt"
)

// Error conditions reported by the adjustment routines.
// Callers match them with errors.Is; the returned errors carry the context.
var (
	// Fewer correspondences or measurements than the model needs
	ErrInsufficientObservations = errors.New("insufficient observations")

	// Normal matrix (or square design matrix) is singular for the given geometry
	ErrSingularSystem = errors.New("singular system")

	// Observation vectors inconsistent with the number of stations or points
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// Traverse refinement hit its iteration cap before meeting the tolerance
	ErrMaxIterations = errors.New("maximum number of iterations exceeded")

	// Weighting or convergence settings out of range
	ErrInvalidOptions = errors.New("invalid options")
)

func insufficient(what string, have, need int) error {
	return fmt.Errorf("%w: %s needs at least %d, got %d", ErrInsufficientObservations, what, need, have)
}

func singular(cause string) error {
	return fmt.Errorf("%w: %s", ErrSingularSystem, cause)
}

func mismatch(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrDimensionMismatch, fmt.Sprintf(format, a...))
}
