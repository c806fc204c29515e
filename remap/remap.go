// Package remap maps the local palettes of every picture in a document
// onto the image-color region of the display colormap.
//
// A run counts the colors of all color pictures, negotiates room for them
// with the palette manager and then rewrites the Pixel field of every
// local palette entry, either one region slot per color (Direct) or
// through a trained reduced palette (Quantize). Raster bytes are never
// changed except by the monochrome fallback.
package remap

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"iter"
	"sync/atomic"

	"github.com/alefaraci/figcolor/dither"
	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/logger"
	"github.com/alefaraci/figcolor/palette"
	"github.com/alefaraci/figcolor/quant"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var (
	ErrInProgress = errors.New("remap already in progress")
	ErrNoCapacity = errors.New("not enough image colors available")
	ErrQuantize   = errors.New("color quantization failed")
)

type Strategy int

const (
	None Strategy = iota
	Direct
	Quantize
	Monochrome
)

func (s Strategy) String() string {
	switch s {
	case None:
		return "none"
	case Direct:
		return "direct"
	case Quantize:
		return "quantize"
	case Monochrome:
		return "monochrome"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

type Config struct {
	// MaxImageColors caps the image-color region.
	MaxImageColors int `toml:"max_image_colors"`
	// MonochromeFallback dithers every picture when no colors can be
	// granted instead of failing the run.
	MonochromeFallback bool `toml:"monochrome_fallback"`
	// CancelCheckPixels is the number of pixels sampled between checks
	// for cancellation.
	CancelCheckPixels int `toml:"cancel_check_pixels"`
	// Seed seeds the monochrome fallback.
	Seed uint64 `toml:"-"`
}

func DefaultConfig() Config {
	return Config{
		MaxImageColors:    figure.MaxColors,
		CancelCheckPixels: 1 << 16,
	}
}

// Result describes a completed or canceled run.
type Result struct {
	Strategy Strategy
	// Total is the number of local palette entries counted.
	Total int
	// Granted is the size of the image-color region used.
	Granted int
	// Pictures is the number of pictures recolored.
	Pictures int
	// Skipped is the number of invalid pictures left untouched.
	Skipped  int
	Canceled bool
}

// Engine runs remaps against one palette manager. Only one run may be in
// progress at a time; a second concurrent Run fails with ErrInProgress.
type Engine struct {
	pal   *palette.Manager
	quant quant.Engine
	cfg   Config

	running atomic.Bool
}

func New(pal *palette.Manager, q quant.Engine, cfg Config) *Engine {
	if cfg.MaxImageColors <= 0 {
		cfg.MaxImageColors = DefaultConfig().MaxImageColors
	}
	if cfg.CancelCheckPixels <= 0 {
		cfg.CancelCheckPixels = DefaultConfig().CancelCheckPixels
	}
	return &Engine{pal: pal, quant: q, cfg: cfg}
}

// InProgress reports whether a run is active.
func (e *Engine) InProgress() bool {
	return e.running.Load()
}

// Run remaps every picture of the document rooted at root, including the
// pages chained through Next and nested figures.
//
// Canceling ctx stops the run at the next checkpoint and returns a Result
// with Canceled set and a nil error; no picture is left half rewritten.
// Invalid pictures are skipped and reported together in the returned
// error alongside a non-nil Result.
func (e *Engine) Run(ctx context.Context, root *figure.Compound) (*Result, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer e.running.Store(false)

	log := logger.L(ctx)
	if e.pal.Monochrome() {
		return e.monochrome(ctx, root, &Result{})
	}

	r := &run{root: root, bad: make(map[*figure.Picture]bool)}
	res := &Result{}
	for p := range figure.Pictures(root) {
		if p.Monochrome() || p.Empty() {
			continue
		}
		if err := p.Validate(); err != nil {
			r.bad[p] = true
			r.errs = multierr.Append(r.errs, fmt.Errorf("%s: %w", p.File, err))
			continue
		}
		res.Total += p.NumColors()
	}
	res.Skipped = len(r.bad)
	if r.errs != nil {
		log.Warn("skipping invalid pictures", zap.Int("count", res.Skipped), zap.Error(r.errs))
	}
	if res.Total == 0 {
		return res, r.errs
	}

	res.Strategy = Direct
	target := res.Total
	if target > e.cfg.MaxImageColors {
		res.Strategy = Quantize
		target = e.cfg.MaxImageColors
	}

	res.Granted = e.pal.ReserveImageColors(target)
	if res.Granted < target {
		if res.Granted == 0 || (res.Granted < 2 && res.Total >= 2) {
			// The reservation above already gave up any earlier region.
			// Pictures remapped by an earlier run keep their old slots,
			// which stay stale until a later run succeeds.
			granted := res.Granted
			e.pal.ReleaseImageColors()
			res.Granted = 0
			if e.cfg.MonochromeFallback {
				log.Warn("no image colors available, dithering", zap.Int("requested", target))
				return e.monochrome(ctx, root, res)
			}
			return nil, fmt.Errorf("%w: requested %d, granted %d", ErrNoCapacity, target, granted)
		}
		res.Strategy = Quantize
	}

	var err error
	switch res.Strategy {
	case Direct:
		err = e.direct(ctx, r, res)
	case Quantize:
		err = e.quantize(ctx, r, res)
	}
	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Info("remap canceled", zap.Stringer("strategy", res.Strategy))
			res.Canceled = true
			return res, nil
		}
		return nil, err
	}

	log.Info("remapped image colors",
		zap.Stringer("strategy", res.Strategy),
		zap.Int("colors", res.Total),
		zap.Int("granted", res.Granted),
		zap.Int("pictures", res.Pictures))
	return res, r.errs
}

func (e *Engine) monochrome(ctx context.Context, root *figure.Compound, res *Result) (*Result, error) {
	res.Strategy = Monochrome
	n, err := dither.Document(ctx, root, e.cfg.Seed)
	res.Pictures = n
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		res.Canceled = true
		return res, nil
	}
	return res, err
}

// run holds the state shared by the passes of one Run.
type run struct {
	root *figure.Compound
	bad  map[*figure.Picture]bool
	errs error
}

// pictures yields the pictures the run recolors, in document order.
func (r *run) pictures() iter.Seq[*figure.Picture] {
	return func(yield func(*figure.Picture) bool) {
		for p := range figure.Pictures(r.root) {
			if p.Monochrome() || p.Empty() || r.bad[p] {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// direct gives every local color a region slot of its own. The first pass
// loads the colors into the region, the second commits the slots to the
// pictures. Both passes advance the same counter in the same order.
func (e *Engine) direct(ctx context.Context, r *run, res *Result) error {
	next := 0
	for p := range r.pictures() {
		for _, c := range p.Cmap {
			e.pal.SetImageColor(next, c.RGBA())
			next++
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	next = 0
	for p := range r.pictures() {
		for i := range p.Cmap {
			p.Cmap[i].Pixel = int(e.pal.ImageColor(next).Slot)
			next++
		}
		p.InvalidateDisplay()
		res.Pictures++
	}
	return nil
}

// quantize trains the engine on every pixel of every picture, loads the
// trained palette into the region and maps each local color to its
// nearest trained color.
func (e *Engine) quantize(ctx context.Context, r *run, res *Result) error {
	var samples []byte
	seen := 0
	for p := range r.pictures() {
		for _, b := range p.Raster {
			c := p.Cmap[b]
			samples = append(samples, c.R, c.G, c.B)
			seen++
			if seen%e.cfg.CancelCheckPixels == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	trained, err := e.train(ctx, samples, res.Granted)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	classes := make(map[*figure.Picture][]int)
	for p := range r.pictures() {
		ks := make([]int, len(p.Cmap))
		for i, c := range p.Cmap {
			k := e.quant.Classify(c.RGBA())
			if k < 0 || k >= res.Granted {
				return fmt.Errorf("%w: %s: color %d classified as %d of %d", ErrQuantize, p.File, i, k, res.Granted)
			}
			ks[i] = k
		}
		classes[p] = ks
	}

	for i, c := range trained {
		e.pal.SetImageColor(i, c)
	}
	for p := range r.pictures() {
		for i, k := range classes[p] {
			p.Cmap[i].Pixel = int(e.pal.ImageColor(k).Slot)
		}
		p.InvalidateDisplay()
		res.Pictures++
	}
	return nil
}

// train honours one request for more samples.
func (e *Engine) train(ctx context.Context, samples []byte, n int) ([]color.RGBA, error) {
	trained, err := e.quant.Train(ctx, samples, n)
	var need *quant.NeedSamplesError
	if errors.As(err, &need) {
		logger.L(ctx).Debug("retrying quantization with more samples", zap.Int("multiplier", need.Multiplier))
		trained, err = e.quant.Train(ctx, quant.Repeat(samples, need.Multiplier), n)
	}
	switch {
	case err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrQuantize, err)
	case len(trained) != n:
		return nil, fmt.Errorf("%w: trained %d colors, want %d", ErrQuantize, len(trained), n)
	}
	return trained, nil
}
