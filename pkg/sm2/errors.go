package sm2

import (
	"errors"
	"math"
)

// ErrInvalidQuality is returned for a response quality outside [0, 5].
var ErrInvalidQuality = errors.New("sm2: response quality must be between 0 and 5")

// ValidateQuality reports whether q is a usable response quality.
func ValidateQuality(q float64) error {
	if math.IsNaN(q) || q < 0 || q > MaxQuality {
		return ErrInvalidQuality
	}
	return nil
}
