// Package quant reduces the colors of a pixel population to a small
// palette and maps colors onto that palette.
package quant

import (
	"context"
	"errors"
	"fmt"
	"image/color"
)

// ErrTooFewColors is returned when the requested palette size cannot be
// trained.
var ErrTooFewColors = errors.New("palette size out of range")

// Engine is a trainable color quantizer. Train must succeed before
// Classify is called; Classify answers against the most recent training.
type Engine interface {
	// Train learns a palette of exactly n colors from samples, a packed
	// sequence of R, G, B bytes weighted by pixel frequency.
	Train(ctx context.Context, samples []byte, n int) ([]color.RGBA, error)
	// Classify returns the index of the trained color nearest to c.
	Classify(c color.RGBA) int
}

// NeedSamplesError reports that the training set is too small. The
// caller may retry once with the samples repeated Multiplier times.
type NeedSamplesError struct {
	Have       int
	Multiplier int
}

func (e *NeedSamplesError) Error() string {
	return fmt.Sprintf("quantizer needs more samples: have %d bytes, retry with x%d", e.Have, e.Multiplier)
}

// Repeat returns samples concatenated n times.
func Repeat(samples []byte, n int) []byte {
	out := make([]byte, 0, len(samples)*max(n, 1))
	for range max(n, 1) {
		out = append(out, samples...)
	}
	return out
}

// Nearest returns the index of the entry of pal closest to c by the sum of
// absolute channel differences. Ties go to the lowest index.
func Nearest(pal []color.RGBA, c color.RGBA) int {
	best, bestDist := 0, -1
	for i, p := range pal {
		d := absDiff(p.R, c.R) + absDiff(p.G, c.G) + absDiff(p.B, c.B)
		if bestDist < 0 || d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return best
}

func absDiff(a, b uint8) int {
	if a > b {
		return int(a - b)
	}
	return int(b - a)
}
