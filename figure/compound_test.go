package figure

import (
	"image"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ignoreHidden = cmpopts.IgnoreUnexported(Compound{}, Picture{})

type countingHandle struct{ released int }

func (h *countingHandle) Release() { h.released++ }

func colorPicture(file string, w, h int, cmap ...PaletteColor) *Picture {
	p := NewPicture(PicPNG, file)
	p.Size = image.Pt(w, h)
	p.Cmap = cmap
	p.Raster = make([]byte, w*h)
	for i := range p.Raster {
		p.Raster[i] = byte(i % len(cmap))
	}
	return p
}

func pictureLine(p *Picture, x0, y0, x1, y1 int) *Line {
	return &Line{
		Attrs:  Attrs{Depth: 50, PenColor: Default, FillColor: Default},
		Kind:   PictureBox,
		Points: []Point{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}, {x0, y0}},
		Pic:    p,
	}
}

// sampleDocument builds a two-page document exercising every primitive
// kind, arrowheads, spline factors, a nested compound and a picture with
// an embedded figure.
func sampleDocument() *Compound {
	inner := New()
	inner.Add(pictureLine(colorPicture("inner.png", 2, 2,
		PaletteColor{R: 10, G: 20, B: 30},
		PaletteColor{R: 40, G: 50, B: 60}), 0, 0, 100, 100))

	embedded := New()
	embedded.Add(pictureLine(colorPicture("embedded.png", 1, 1, PaletteColor{R: 1, G: 2, B: 3}), 0, 0, 10, 10))
	outerPic := colorPicture("outer.png", 3, 1,
		PaletteColor{R: 255}, PaletteColor{G: 255}, PaletteColor{B: 255})
	outerPic.Figure = embedded

	root := New()
	root.Comment = "page one"
	root.AddCompound(inner)
	root.Add(pictureLine(outerPic, 200, 200, 400, 300))
	root.Add(&Line{
		Attrs:    Attrs{Depth: 10, PenColor: Red, Thickness: 2},
		Kind:     Polyline,
		Points:   []Point{{0, 0}, {500, 20}},
		Forward:  &ArrowSpec{Type: 1, Style: 1, Thickness: 1, Width: 8, Height: 16},
		Backward: &ArrowSpec{Type: 2, Style: 0, Thickness: 1, Width: 4, Height: 8},
	})
	root.Add(&Arc{
		Attrs:   Attrs{Depth: 20, PenColor: Blue},
		Kind:    OpenArc,
		Points:  [3]Point{{100, 0}, {0, -100}, {-100, 0}},
		Forward: &ArrowSpec{Width: 6, Height: 12},
	})
	root.Add(&Ellipse{
		Attrs:  Attrs{Depth: 30, FillColor: UserColor(3)},
		Kind:   EllipseByRadii,
		Center: Point{600, 600},
		Radii:  Point{50, 25},
	})
	root.Add(&Spline{
		Attrs:   Attrs{Depth: 40},
		Kind:    ClosedX,
		Points:  []Point{{10, 10}, {60, 80}, {110, 10}},
		Factors: []ShapeFactor{0, 1, -0.5},
	})
	root.Add(&Text{
		Attrs:   Attrs{Depth: 5, PenColor: Black},
		Base:    Point{300, 700},
		Length:  120,
		Ascent:  14,
		Descent: 4,
		String:  "caption",
	})

	page2 := New()
	page2.Add(pictureLine(colorPicture("page2.png", 2, 1,
		PaletteColor{R: 7, G: 7, B: 7}, PaletteColor{R: 9, G: 9, B: 9}), 0, 0, 50, 50))
	root.Append(page2)
	return root
}

func TestNewIsEmpty(t *testing.T) {
	c := New()
	assert.True(t, c.Empty())
	assert.Equal(t, Box{}, c.Box)
	assert.Nil(t, c.Parent())
	assert.Equal(t, Box{}, c.ComputeBounds())
}

func TestCopyIsIndependent(t *testing.T) {
	src := sampleDocument()
	want, err := src.Copy()
	require.NoError(t, err)

	got, err := src.Copy()
	require.NoError(t, err)
	if diff := cmp.Diff(want, got, ignoreHidden); diff != "" {
		t.Fatalf("copies differ (-want +got):\n%s", diff)
	}

	got.Comment = "changed"
	got.Lines[0].Points[0].X = -999
	got.Lines[0].Pic.Raster[0] = 2
	got.Lines[0].Pic.Cmap[0].Pixel = 77
	got.Lines[0].Pic.Figure.Lines[0].Pic.Cmap[0].R = 0
	got.Lines[1].Forward.Width = 100
	got.Arcs[0].Points[1].Y = 5
	got.Splines[0].Factors[1] = 0
	got.Texts[0].String = "other"
	got.Compounds[0].Lines[0].Pic.Cmap = nil
	got.Add(&Line{Kind: Polyline, Points: []Point{{1, 1}}})

	if diff := cmp.Diff(want, src, ignoreHidden, cmpopts.IgnoreFields(Compound{}, "Next")); diff != "" {
		t.Errorf("mutating the copy changed the source (-want +got):\n%s", diff)
	}
}

func TestCopyIsDetachedRoot(t *testing.T) {
	src := sampleDocument()
	parent := New()
	parent.DrillInto(src)
	require.Same(t, parent, src.Parent())
	require.NotNil(t, src.Next)

	cp, err := src.Copy()
	require.NoError(t, err)
	assert.Nil(t, cp.Next)
	assert.Nil(t, cp.Parent())

	src.Detach()
	assert.Nil(t, src.Parent())
}

func TestCopyDropsDisplayHandles(t *testing.T) {
	src := sampleDocument()
	h := &countingHandle{}
	pic := src.Lines[0].Pic
	pic.SetDisplay(h)

	cp, err := src.Copy()
	require.NoError(t, err)
	assert.Nil(t, cp.Lines[0].Pic.Display())
	assert.Same(t, h, pic.Display())
	assert.Zero(t, h.released)
}

func TestCopyFailsOnInvalidPicture(t *testing.T) {
	src := sampleDocument()
	bad := src.Compounds[0].Lines[0].Pic
	bad.Raster = bad.Raster[:1]

	cp, err := src.Copy()
	assert.Nil(t, cp)
	require.ErrorIs(t, err, ErrInvalidPicture)
	assert.Contains(t, err.Error(), "inner.png")
}

func TestCopyFailsOnInvalidNestedFigure(t *testing.T) {
	src := sampleDocument()
	nested := src.Lines[0].Pic.Figure.Lines[0].Pic
	nested.Raster[0] = 9

	cp, err := src.Copy()
	assert.Nil(t, cp)
	assert.ErrorIs(t, err, ErrInvalidPicture)
}

func TestComputeBoundsCoversEveryPrimitive(t *testing.T) {
	root := sampleDocument()
	box := root.ComputeBounds()
	assert.Equal(t, box, root.Box)

	for o := range root.Objects() {
		e := o.Extent()
		assert.Truef(t, box.Contains(e), "%T extent %v outside %v", o, e, box)
	}
	assert.True(t, box.Contains(root.Compounds[0].Box))
	assert.Equal(t, Box{NW: Point{0, 0}, SE: Point{100, 100}}, root.Compounds[0].Box)
}

func TestComputeBoundsNeverGrowsOnDelete(t *testing.T) {
	root := sampleDocument()
	before := root.ComputeBounds()

	for len(root.Lines)+len(root.Arcs)+len(root.Texts) > 0 {
		var o Object
		switch {
		case len(root.Texts) > 0:
			o = root.Texts[0]
		case len(root.Arcs) > 0:
			o = root.Arcs[0]
		default:
			o = root.Lines[0]
		}
		require.True(t, root.Remove(o))
		after := root.ComputeBounds()
		assert.Truef(t, before.Contains(after), "box grew from %v to %v", before, after)
		before = after
	}
	assert.False(t, root.Remove(&Text{}))
}

func TestComputeBoundsIgnoresEmptyChildren(t *testing.T) {
	root := New()
	root.AddCompound(New())
	root.Add(&Line{Kind: Polyline, Points: []Point{{10, 20}, {30, 40}}})
	assert.Equal(t, Box{NW: Point{10, 20}, SE: Point{30, 40}}, root.ComputeBounds())
}

func TestArcExtent(t *testing.T) {
	tests := []struct {
		name      string
		clockwise bool
		kind      ArcKind
		want      Box
	}{
		{"upper half", false, OpenArc, Box{Point{-100, -100}, Point{100, 0}}},
		{"lower half", true, OpenArc, Box{Point{-100, 0}, Point{100, 100}}},
		{"pie", false, PieArc, Box{Point{-100, -100}, Point{100, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Arc{
				Kind:      tt.kind,
				Clockwise: tt.clockwise,
				Points:    [3]Point{{100, 0}, {0, -100}, {-100, 0}},
			}
			if tt.clockwise {
				a.Points[1] = Point{0, 100}
			}
			assert.Equal(t, tt.want, a.Extent())
		})
	}
}

func TestEllipseExtent(t *testing.T) {
	e := &Ellipse{Center: Point{0, 0}, Radii: Point{100, 50}}
	assert.Equal(t, Box{Point{-100, -50}, Point{100, 50}}, e.Extent())

	e.Angle = 1.5707963267948966
	assert.Equal(t, Box{Point{-50, -100}, Point{50, 100}}, e.Extent())

	e.Thickness = 4
	assert.Equal(t, Box{Point{-52, -102}, Point{52, 102}}, e.Extent())
}

func TestTextExtent(t *testing.T) {
	txt := &Text{Base: Point{10, 100}, Length: 50, Ascent: 12, Descent: 3}
	assert.Equal(t, Box{Point{10, 88}, Point{60, 103}}, txt.Extent())

	txt.Justify = JustifyRight
	assert.Equal(t, Box{Point{-40, 88}, Point{10, 103}}, txt.Extent())

	txt.Justify = JustifyCenter
	assert.Equal(t, Box{Point{-15, 88}, Point{35, 103}}, txt.Extent())
}

func TestLineExtentIncludesArrows(t *testing.T) {
	l := &Line{Attrs: Attrs{Thickness: 2}, Points: []Point{{0, 0}, {100, 0}}}
	assert.Equal(t, Box{Point{-1, -1}, Point{101, 1}}, l.Extent())

	l.Forward = &ArrowSpec{Width: 10, Thickness: 2}
	assert.Equal(t, Box{Point{-6, -6}, Point{106, 6}}, l.Extent())
}

func TestPicturesDocumentOrder(t *testing.T) {
	root := sampleDocument()
	var files []string
	for p := range Pictures(root) {
		files = append(files, p.File)
	}
	assert.Equal(t, []string{"inner.png", "embedded.png", "outer.png", "page2.png"}, files)

	files = files[:0]
	for p := range Pictures(root) {
		files = append(files, p.File)
		if len(files) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"inner.png", "embedded.png"}, files)
}

func TestPicturesNilRoot(t *testing.T) {
	for range Pictures(nil) {
		t.Fatal("nil document yielded a picture")
	}
}

func TestDiscardReleasesHandles(t *testing.T) {
	root := sampleDocument()
	var handles []*countingHandle
	for p := range Pictures(root) {
		h := &countingHandle{}
		p.SetDisplay(h)
		handles = append(handles, h)
	}
	page2 := root.Next

	root.Discard()
	assert.True(t, root.Empty())
	assert.Same(t, page2, root.Next)
	for i, h := range handles[:3] {
		assert.Equalf(t, 1, h.released, "handle %d", i)
	}
	assert.Zero(t, handles[3].released, "next page must survive")
}

func TestRemoveCompoundClearsParent(t *testing.T) {
	root := New()
	child := New()
	root.AddCompound(child)
	root.DrillInto(child)

	assert.True(t, root.RemoveCompound(child))
	assert.Nil(t, child.Parent())
	assert.False(t, root.RemoveCompound(child))
}
