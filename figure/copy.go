package figure

import (
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// Copy returns a deep copy of c that shares no memory with it. The copy
// is a detached root: Next and the parent reference are not carried over,
// and cached picture handles start empty.
//
// If any picture below c fails validation, Copy logs it and returns a nil
// compound with an error wrapping ErrInvalidPicture; nothing built so far
// is reachable from the caller.
func (c *Compound) Copy() (*Compound, error) {
	n, err := copyCompound(c)
	if err != nil {
		zap.L().Warn("compound copy failed", zap.Error(err))
		return nil, err
	}
	return n, nil
}

func copyCompound(c *Compound) (*Compound, error) {
	n := &Compound{
		Box:     c.Box,
		Tagged:  c.Tagged,
		Comment: c.Comment,
	}
	if c.Lines != nil {
		n.Lines = make([]*Line, 0, len(c.Lines))
		for _, l := range c.Lines {
			nl, err := l.Copy()
			if err != nil {
				return nil, err
			}
			n.Lines = append(n.Lines, nl)
		}
	}
	n.Arcs = copyEach(c.Arcs, (*Arc).Copy)
	n.Ellipses = copyEach(c.Ellipses, (*Ellipse).Copy)
	n.Splines = copyEach(c.Splines, (*Spline).Copy)
	n.Texts = copyEach(c.Texts, (*Text).Copy)
	if c.Compounds != nil {
		n.Compounds = make([]*Compound, 0, len(c.Compounds))
		for _, sub := range c.Compounds {
			ns, err := copyCompound(sub)
			if err != nil {
				return nil, err
			}
			n.Compounds = append(n.Compounds, ns)
		}
	}
	return n, nil
}

func copyEach[T any](s []*T, cp func(*T) *T) []*T {
	if s == nil {
		return nil
	}
	out := make([]*T, len(s))
	for i, v := range s {
		out[i] = cp(v)
	}
	return out
}

func copyArrow(a *ArrowSpec) *ArrowSpec {
	if a == nil {
		return nil
	}
	na := *a
	return &na
}

// Copy returns a deep copy of the line, including its picture.
func (l *Line) Copy() (*Line, error) {
	n := *l
	n.Points = slices.Clone(l.Points)
	n.Forward = copyArrow(l.Forward)
	n.Backward = copyArrow(l.Backward)
	if l.Pic != nil {
		p, err := l.Pic.Copy()
		if err != nil {
			return nil, err
		}
		n.Pic = p
	}
	return &n, nil
}

// Copy returns a deep copy of the picture and of its nested figure, with
// no cached display handle. It fails if the picture does not validate.
func (p *Picture) Copy() (*Picture, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("copy picture %q: %w", p.File, err)
	}
	n := *p
	n.display = nil
	n.Raster = slices.Clone(p.Raster)
	n.Cmap = slices.Clone(p.Cmap)
	n.Figure = nil
	var last *Compound
	for f := range p.Figure.Chain() {
		nf, err := copyCompound(f)
		if err != nil {
			return nil, err
		}
		if last == nil {
			n.Figure = nf
		} else {
			last.Next = nf
		}
		last = nf
	}
	return &n, nil
}

func (a *Arc) Copy() *Arc {
	n := *a
	n.Forward = copyArrow(a.Forward)
	n.Backward = copyArrow(a.Backward)
	return &n
}

func (e *Ellipse) Copy() *Ellipse {
	n := *e
	return &n
}

func (s *Spline) Copy() *Spline {
	n := *s
	n.Points = slices.Clone(s.Points)
	n.Factors = slices.Clone(s.Factors)
	n.Forward = copyArrow(s.Forward)
	n.Backward = copyArrow(s.Backward)
	return &n
}

func (t *Text) Copy() *Text {
	n := *t
	return &n
}
