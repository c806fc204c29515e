package figure

import "math"

// ComputeBounds recomputes c.Box as the union of the extents of every
// primitive below c, refreshing the boxes of nested compounds on the way.
// A compound with nothing in it gets the zero box. Call it after any change
// to point lists, picture frames or the set of primitives.
func (c *Compound) ComputeBounds() Box {
	b, _ := c.bounds()
	return b
}

func (c *Compound) bounds() (Box, bool) {
	var (
		b  Box
		ok bool
	)
	add := func(e Box) {
		if !ok {
			b, ok = e, true
			return
		}
		b = b.Union(e)
	}
	for _, sub := range c.Compounds {
		if sb, sok := sub.bounds(); sok {
			add(sb)
		}
	}
	for _, o := range c.Lines {
		if len(o.Points) > 0 {
			add(o.Extent())
		}
	}
	for _, o := range c.Arcs {
		add(o.Extent())
	}
	for _, o := range c.Ellipses {
		add(o.Extent())
	}
	for _, o := range c.Splines {
		if len(o.Points) > 0 {
			add(o.Extent())
		}
	}
	for _, o := range c.Texts {
		add(o.Extent())
	}
	c.Box = b
	return b, ok
}

func pointsBox(pts []Point) Box {
	if len(pts) == 0 {
		return Box{}
	}
	b := Box{pts[0], pts[0]}
	for _, p := range pts[1:] {
		b = b.Union(Box{p, p})
	}
	return b
}

func widen(b Box, w int) Box {
	b.NW.X -= w
	b.NW.Y -= w
	b.SE.X += w
	b.SE.Y += w
	return b
}

// halfWidth is how far a stroke of the given thickness, with optional
// arrowheads, reaches past its centre line.
func halfWidth(thickness int, arrows ...*ArrowSpec) int {
	w := float64(thickness) / 2
	for _, a := range arrows {
		if a != nil {
			w = max(w, a.Width/2+a.Thickness/2)
		}
	}
	return int(math.Ceil(w))
}

func floorBox(x0, y0, x1, y1 float64) Box {
	return Box{
		NW: Point{int(math.Floor(snap(x0))), int(math.Floor(snap(y0)))},
		SE: Point{int(math.Ceil(snap(x1))), int(math.Ceil(snap(y1)))},
	}
}

// snap drops trigonometric noise so that exact values stay exact.
func snap(v float64) float64 {
	if r := math.Round(v); math.Abs(v-r) < 1e-9 {
		return r
	}
	return v
}

// Extent returns the box covered by the line's stroke and arrowheads.
func (l *Line) Extent() Box {
	return widen(pointsBox(l.Points), halfWidth(l.Thickness, l.Forward, l.Backward))
}

// Extent returns the box covered by the arc, including every axis
// extreme the arc sweeps through and, for pie arcs, the center.
func (a *Arc) Extent() Box {
	cx, cy := a.CenterX, a.CenterY
	p0, p2 := a.Points[0], a.Points[2]
	r := math.Hypot(float64(p0.X)-cx, float64(p0.Y)-cy)

	start, end := arcAngle(cx, cy, p0), arcAngle(cx, cy, p2)
	if a.Clockwise {
		start, end = end, start
	}
	sweep := normAngle(end - start)

	b := pointsBox(a.Points[:])
	for q := range 4 {
		t := float64(q) * math.Pi / 2
		if normAngle(t-start) > sweep {
			continue
		}
		x, y := cx+r*math.Cos(t), cy-r*math.Sin(t)
		b = b.Union(floorBox(x, y, x, y))
	}
	if a.Kind == PieArc {
		b = b.Union(floorBox(cx, cy, cx, cy))
	}
	return widen(b, halfWidth(a.Thickness, a.Forward, a.Backward))
}

// arcAngle is the counterclockwise angle of p around the center, with y
// growing downwards on the page.
func arcAngle(cx, cy float64, p Point) float64 {
	return normAngle(math.Atan2(cy-float64(p.Y), float64(p.X)-cx))
}

func normAngle(t float64) float64 {
	t = math.Mod(t, 2*math.Pi)
	if t < 0 {
		t += 2 * math.Pi
	}
	return t
}

// Extent returns the box around the rotated ellipse.
func (e *Ellipse) Extent() Box {
	rx, ry := math.Abs(float64(e.Radii.X)), math.Abs(float64(e.Radii.Y))
	s, c := math.Sincos(e.Angle)
	hx := math.Sqrt(rx*rx*c*c + ry*ry*s*s)
	hy := math.Sqrt(rx*rx*s*s + ry*ry*c*c)
	cx, cy := float64(e.Center.X), float64(e.Center.Y)
	return widen(floorBox(cx-hx, cy-hy, cx+hx, cy+hy), halfWidth(e.Thickness))
}

// Extent returns the box around the spline's control points. Every
// X-spline curve stays inside the hull of its control points.
func (s *Spline) Extent() Box {
	return widen(pointsBox(s.Points), halfWidth(s.Thickness, s.Forward, s.Backward))
}

// Extent returns the box around the text's rotated metric rectangle.
func (t *Text) Extent() Box {
	length := float64(t.Length)
	var off float64
	switch t.Justify {
	case JustifyCenter:
		off = -length / 2
	case JustifyRight:
		off = -length
	}
	s, c := math.Sincos(t.Angle)
	// along the baseline and towards the top of the glyphs, page y down
	ux, uy := c, -s
	vx, vy := -s, -c

	bx, by := float64(t.Base.X), float64(t.Base.Y)
	x0, y0 := math.Inf(1), math.Inf(1)
	x1, y1 := math.Inf(-1), math.Inf(-1)
	for _, along := range [2]float64{off, off + length} {
		for _, up := range [2]float64{float64(t.Ascent), -float64(t.Descent)} {
			x := bx + ux*along + vx*up
			y := by + uy*along + vy*up
			x0, y0 = min(x0, x), min(y0, y)
			x1, y1 = max(x1, x), max(y1, y)
		}
	}
	return floorBox(x0, y0, x1, y1)
}
