// Package dither reduces color pictures to packed 1-bit rasters by
// Floyd-Steinberg error diffusion.
package dither

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/logger"
	"github.com/alefaraci/figcolor/palette"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// ErrNotIndexed is returned for a picture that is already monochrome.
var ErrNotIndexed = errors.New("picture is not color indexed")

const (
	fsScale     = 1024
	halfFSScale = fsScale / 2
)

// ReduceToMonochrome replaces the color-indexed raster of p with a packed
// 1-bit raster and empties its palette. Rows are scanned alternately left
// to right and right to left; the first row's error is seeded from seed,
// so equal input and seed give byte-identical output. The transparent
// color dithers as white.
func ReduceToMonochrome(p *figure.Picture, seed uint64) error {
	if p.Monochrome() {
		return fmt.Errorf("%s: %w", p.File, ErrNotIndexed)
	}
	if err := p.Validate(); err != nil {
		return err
	}

	if p.Empty() {
		p.Raster, p.Cmap, p.Transparent = nil, nil, -1
		p.InvalidateDisplay()
		return nil
	}

	w, h := p.Size.X, p.Size.Y
	grays := make([]int, len(p.Cmap))
	for i, c := range p.Cmap {
		l := int(math.Round(palette.Luma(c.RGBA())))
		if i == p.Transparent {
			l = 255
		}
		grays[i] = l * fsScale / 255
	}

	stride := (w + 7) / 8
	out := make([]byte, stride*h)

	rng := rand.New(rand.NewPCG(seed, seed))
	thisErr := make([]int, w+2)
	nextErr := make([]int, w+2)
	for i := range thisErr {
		thisErr[i] = (rng.IntN(fsScale) - halfFSScale) / 4
	}

	leftToRight := true
	for y := range h {
		clear(nextErr)
		src := p.Raster[y*w : (y+1)*w]
		dst := out[y*stride : (y+1)*stride]
		for i := range w {
			x := i
			if !leftToRight {
				x = w - 1 - i
			}
			sum := grays[src[x]] + thisErr[x+1]
			if sum >= halfFSScale {
				sum -= fsScale
			} else {
				dst[x>>3] |= 0x80 >> (x & 7)
			}
			if leftToRight {
				thisErr[x+2] += sum * 7 / 16
				nextErr[x] += sum * 3 / 16
				nextErr[x+1] += sum * 5 / 16
				nextErr[x+2] += sum / 16
			} else {
				thisErr[x] += sum * 7 / 16
				nextErr[x+2] += sum * 3 / 16
				nextErr[x+1] += sum * 5 / 16
				nextErr[x] += sum / 16
			}
		}
		thisErr, nextErr = nextErr, thisErr
		leftToRight = !leftToRight
	}

	p.Raster = out
	p.Cmap = nil
	p.Transparent = -1
	p.InvalidateDisplay()
	return nil
}

// Document reduces every color picture of the document rooted at root,
// including nested figures. The context is checked between pictures.
// Pictures that fail are skipped and reported together.
func Document(ctx context.Context, root *figure.Compound, seed uint64) (int, error) {
	var (
		n    int
		errs error
	)
	for p := range figure.Pictures(root) {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		if p.Monochrome() {
			continue
		}
		if err := ReduceToMonochrome(p, seed); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		n++
	}
	if errs != nil {
		logger.L(ctx).Warn("monochrome reduction skipped pictures", zap.Error(errs))
	}
	return n, errs
}
