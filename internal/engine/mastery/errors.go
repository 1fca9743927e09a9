package mastery

import "errors"

// Sentinel errors for the mastery package.
// Use errors.Is to check: errors.Is(err, mastery.ErrInvalidRating)
var (
	ErrInvalidRating = errors.New("mastery: invalid rating")
)
