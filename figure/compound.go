package figure

import "slices"

// Box is an axis-aligned bounding box; NW is the top-left corner.
type Box struct {
	NW, SE Point
}

// Union returns the smallest box containing b and o.
func (b Box) Union(o Box) Box {
	return Box{
		NW: Point{min(b.NW.X, o.NW.X), min(b.NW.Y, o.NW.Y)},
		SE: Point{max(b.SE.X, o.SE.X), max(b.SE.Y, o.SE.Y)},
	}
}

// Contains reports whether o lies entirely inside b.
func (b Box) Contains(o Box) bool {
	return o.NW.X >= b.NW.X && o.NW.Y >= b.NW.Y && o.SE.X <= b.SE.X && o.SE.Y <= b.SE.Y
}

// Compound groups primitives and nested compounds under one bounding box.
//
// A top-level compound may chain further independent documents (pages)
// through Next. A compound is owned by exactly one slot: a parent's
// Compounds list, a picture's Figure, or the caller holding a root. Use
// Copy before placing a compound anywhere else.
type Compound struct {
	Box     Box
	Tagged  bool
	Comment string

	Lines     []*Line
	Arcs      []*Arc
	Ellipses  []*Ellipse
	Splines   []*Spline
	Texts     []*Text
	Compounds []*Compound

	Next *Compound

	parent *Compound // set only while drilled into
}

// New returns an empty compound.
func New() *Compound {
	return &Compound{}
}

// Empty reports whether c holds no primitives and no nested compounds.
func (c *Compound) Empty() bool {
	return len(c.Lines) == 0 && len(c.Arcs) == 0 && len(c.Ellipses) == 0 &&
		len(c.Splines) == 0 && len(c.Texts) == 0 && len(c.Compounds) == 0
}

// Add appends o to the list of its kind.
func (c *Compound) Add(o Object) {
	switch o := o.(type) {
	case *Line:
		c.Lines = append(c.Lines, o)
	case *Arc:
		c.Arcs = append(c.Arcs, o)
	case *Ellipse:
		c.Ellipses = append(c.Ellipses, o)
	case *Spline:
		c.Splines = append(c.Splines, o)
	case *Text:
		c.Texts = append(c.Texts, o)
	}
}

// Remove deletes o from c's own lists. It reports whether o was found.
// The bounding box is left stale; call ComputeBounds afterwards.
func (c *Compound) Remove(o Object) bool {
	var ok bool
	switch o := o.(type) {
	case *Line:
		c.Lines, ok = without(c.Lines, o)
	case *Arc:
		c.Arcs, ok = without(c.Arcs, o)
	case *Ellipse:
		c.Ellipses, ok = without(c.Ellipses, o)
	case *Spline:
		c.Splines, ok = without(c.Splines, o)
	case *Text:
		c.Texts, ok = without(c.Texts, o)
	}
	return ok
}

// AddCompound nests child inside c.
func (c *Compound) AddCompound(child *Compound) {
	c.Compounds = append(c.Compounds, child)
}

// RemoveCompound removes a nested child from c.
func (c *Compound) RemoveCompound(child *Compound) bool {
	var ok bool
	c.Compounds, ok = without(c.Compounds, child)
	if ok && child.parent == c {
		child.parent = nil
	}
	return ok
}

func without[T comparable](s []T, v T) ([]T, bool) {
	i := slices.Index(s, v)
	if i < 0 {
		return s, false
	}
	return slices.Delete(s, i, i+1), true
}

// DrillInto records c as the parent of child while child is open for
// editing.
func (c *Compound) DrillInto(child *Compound) {
	child.parent = c
}

// Detach clears the parent reference set by DrillInto.
func (c *Compound) Detach() {
	c.parent = nil
}

// Parent returns the compound c was drilled into from, or nil.
func (c *Compound) Parent() *Compound {
	return c.parent
}

// Append links page at the end of c's sibling chain.
func (c *Compound) Append(page *Compound) {
	last := c
	for last.Next != nil {
		last = last.Next
	}
	last.Next = page
}

// Discard destroys c's subtree: every cached picture handle below c,
// including those of nested figures, is released and all lists are
// cleared. The sibling chain is not followed.
func (c *Compound) Discard() {
	for _, sub := range c.Compounds {
		sub.Discard()
	}
	for _, l := range c.Lines {
		if l.Pic == nil {
			continue
		}
		l.Pic.InvalidateDisplay()
		for f := range l.Pic.Figure.Chain() {
			f.Discard()
		}
	}
	*c = Compound{Next: c.Next}
}
