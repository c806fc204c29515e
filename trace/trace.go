// Package trace turns the picture of a picture box into filled polygons.
package trace

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/palette"
	"github.com/dennwc/gotrace"
)

// ErrNoPicture is returned for a line without a drawable picture.
var ErrNoPicture = errors.New("line has no picture")

// solidFill is the fill style of a fully saturated area.
const solidFill = 20

type Options struct {
	// TurdSize suppresses speckles of up to this many pixels.
	TurdSize int `toml:"turd_size"`
	// BezierSteps is the number of line segments each curve is flattened
	// into.
	BezierSteps int `toml:"-"`
	// Ink fills the traced shapes; holes are filled with Paper.
	Ink, Paper figure.Color `toml:"-"`
	// Depth of the outermost shapes. Holes are drawn one level above the
	// shape they cut.
	Depth int `toml:"-"`
}

func DefaultOptions() Options {
	return Options{
		TurdSize:    2,
		BezierSteps: 8,
		Ink:         figure.Black,
		Paper:       figure.White,
		Depth:       50,
	}
}

// Picture traces the dark areas of l's picture. Monochrome pictures trace
// their foreground bits; color pictures trace colors darker than mid gray,
// with the transparent color as background. The polygons are scaled into
// l's bounding box and returned in a new compound with bounds computed.
func Picture(l *figure.Line, opts Options) (*figure.Compound, error) {
	p := l.Pic
	if p == nil || p.Empty() || len(l.Points) == 0 {
		return nil, ErrNoPicture
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if opts.BezierSteps <= 0 {
		opts.BezierSteps = DefaultOptions().BezierSteps
	}

	img := p.Image()
	bm := gotrace.NewBitmapFromImage(img, func(x, y int, cl color.Color) bool {
		if !p.Monochrome() && int(img.ColorIndexAt(x, y)) == p.Transparent {
			return false
		}
		return palette.Luma(color.RGBAModel.Convert(cl).(color.RGBA)) < 127.5
	})
	params := gotrace.Defaults
	params.TurdSize = opts.TurdSize
	paths, err := gotrace.Trace(bm, &params)
	if err != nil {
		return nil, fmt.Errorf("tracing %s: %w", p.File, err)
	}

	box := figure.Box{NW: l.Points[0], SE: l.Points[0]}
	for _, pt := range l.Points[1:] {
		box = box.Union(figure.Box{NW: pt, SE: pt})
	}
	t := &tracer{
		opts: opts,
		x0:   float64(box.NW.X),
		y0:   float64(box.NW.Y),
		sx:   float64(box.SE.X-box.NW.X) / float64(p.Size.X),
		sy:   float64(box.SE.Y-box.NW.Y) / float64(p.Size.Y),
		out:  figure.New(),
	}
	for _, path := range paths {
		t.addTree(path, 0)
	}
	t.out.ComputeBounds()
	return t.out, nil
}

type tracer struct {
	opts           Options
	x0, y0, sx, sy float64
	out            *figure.Compound
}

func (t *tracer) addTree(p gotrace.Path, level int) {
	if pts := t.polygon(p); len(pts) >= 3 {
		fill := t.opts.Ink
		if level%2 == 1 {
			fill = t.opts.Paper
		}
		t.out.Add(&figure.Line{
			Attrs: figure.Attrs{
				Depth:     max(t.opts.Depth-level, 0),
				PenColor:  fill,
				FillColor: fill,
				FillStyle: solidFill,
			},
			Kind:   figure.Polygon,
			Points: pts,
		})
	}
	for _, child := range p.Childs {
		t.addTree(child, level+1)
	}
}

// polygon flattens a closed curve into a closed point list.
func (t *tracer) polygon(p gotrace.Path) []figure.Point {
	c := p.Curve
	if len(c) == 0 {
		return nil
	}
	cur := c[len(c)-1].Pnt[2]
	pts := []figure.Point{t.point(cur)}
	for _, seg := range c {
		switch seg.Type {
		case gotrace.TypeBezier:
			for i := 1; i <= t.opts.BezierSteps; i++ {
				pts = t.appendPoint(pts, bezier(cur, seg.Pnt[0], seg.Pnt[1], seg.Pnt[2], float64(i)/float64(t.opts.BezierSteps)))
			}
		case gotrace.TypeCorner:
			pts = t.appendPoint(pts, seg.Pnt[1])
			pts = t.appendPoint(pts, seg.Pnt[2])
		}
		cur = seg.Pnt[2]
	}
	if pts[len(pts)-1] != pts[0] {
		pts = append(pts, pts[0])
	}
	return pts
}

func (t *tracer) appendPoint(pts []figure.Point, p gotrace.Point) []figure.Point {
	fp := t.point(p)
	if fp == pts[len(pts)-1] {
		return pts
	}
	return append(pts, fp)
}

func (t *tracer) point(p gotrace.Point) figure.Point {
	return figure.Point{
		X: int(math.Round(t.x0 + p.X*t.sx)),
		Y: int(math.Round(t.y0 + p.Y*t.sy)),
	}
}

func bezier(p0, p1, p2, p3 gotrace.Point, u float64) gotrace.Point {
	v := 1 - u
	a, b, c, d := v*v*v, 3*v*v*u, 3*v*u*u, u*u*u
	return gotrace.Point{
		X: a*p0.X + b*p1.X + c*p2.X + d*p3.X,
		Y: a*p0.Y + b*p1.Y + c*p2.Y + d*p3.Y,
	}
}
