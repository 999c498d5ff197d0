// Package sm2 implements the SuperMemo-2 interval scheduler.
//
// A failed recall (quality below 3) sends an item back to the first learning
// step without touching its easiness factor. Successful recalls past the
// second step grow the interval by the updated easiness factor.
package sm2

import (
	"math"
	"time"
)

const (
	// DefaultEFactor is the easiness factor of a new item.
	DefaultEFactor = 2.5
	// MinEFactor is the floor for the easiness factor.
	MinEFactor = 1.3
	// PassQuality is the lowest quality counted as a successful recall.
	PassQuality = 3.0
	// MaxQuality is a perfect response.
	MaxQuality = 5.0

	FirstInterval  = 10 * time.Minute
	SecondInterval = 24 * time.Hour

	// MaxInterval keeps scaled intervals well inside time.Duration's range.
	MaxInterval = 100 * 365 * 24 * time.Hour
)

// Item is the scheduling state of one vocabulary item.
type Item struct {
	Repetition uint32
	Interval   time.Duration
	EFactor    float64
}

// NewItem returns the state of an item that has never been reviewed.
func NewItem() Item {
	return Item{EFactor: DefaultEFactor}
}

// Step returns the state after a review answered with the given quality.
func Step(item Item, quality float64) Item {
	repetition := item.Repetition
	if quality < PassQuality {
		repetition = 0
	}

	switch repetition {
	case 0:
		return Item{Repetition: 1, Interval: FirstInterval, EFactor: item.EFactor}
	case 1:
		return Item{Repetition: 2, Interval: SecondInterval, EFactor: item.EFactor}
	}

	miss := MaxQuality - quality
	ef := math.Max(MinEFactor, item.EFactor+(0.1-miss*(0.08+miss*0.02)))
	return Item{
		Repetition: repetition + 1,
		Interval:   scale(item.Interval, ef),
		EFactor:    ef,
	}
}

// scale multiplies d by f, truncated to whole seconds.
func scale(d time.Duration, f float64) time.Duration {
	secs := math.Trunc(d.Seconds() * f)
	if secs >= MaxInterval.Seconds() {
		return MaxInterval
	}
	return time.Duration(secs) * time.Second
}
