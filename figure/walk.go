package figure

import "iter"

// Chain yields c followed by every compound linked from it through Next.
// A nil c yields nothing.
func (c *Compound) Chain() iter.Seq[*Compound] {
	return func(yield func(*Compound) bool) {
		for ; c != nil; c = c.Next {
			if !yield(c) {
				return
			}
		}
	}
}

// Pictures yields every picture of the document rooted at root, in
// document order: for each compound of the sibling chain, nested compounds
// first, then the pictures of its own lines. The pictures of a nested
// figure are yielded just before the picture embedding it.
//
// Every pass over a document must use this order so that counters shared
// between passes line up.
func Pictures(root *Compound) iter.Seq[*Picture] {
	return func(yield func(*Picture) bool) {
		for c := range root.Chain() {
			if !visitPictures(c, yield) {
				return
			}
		}
	}
}

func visitPictures(c *Compound, yield func(*Picture) bool) bool {
	for _, sub := range c.Compounds {
		if !visitPictures(sub, yield) {
			return false
		}
	}
	for _, l := range c.Lines {
		p := l.Pic
		if p == nil {
			continue
		}
		for f := range p.Figure.Chain() {
			if !visitPictures(f, yield) {
				return false
			}
		}
		if !yield(p) {
			return false
		}
	}
	return true
}

// Objects yields every primitive below c, nested compounds first, then
// c's own lines, arcs, ellipses, splines and texts. Nested figures inside
// pictures are separate documents and are not entered.
func (c *Compound) Objects() iter.Seq[Object] {
	return func(yield func(Object) bool) {
		visitObjects(c, yield)
	}
}

func visitObjects(c *Compound, yield func(Object) bool) bool {
	for _, sub := range c.Compounds {
		if !visitObjects(sub, yield) {
			return false
		}
	}
	for _, o := range c.Lines {
		if !yield(o) {
			return false
		}
	}
	for _, o := range c.Arcs {
		if !yield(o) {
			return false
		}
	}
	for _, o := range c.Ellipses {
		if !yield(o) {
			return false
		}
	}
	for _, o := range c.Splines {
		if !yield(o) {
			return false
		}
	}
	for _, o := range c.Texts {
		if !yield(o) {
			return false
		}
	}
	return true
}
