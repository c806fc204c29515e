package figure

// MaxDepth is the deepest z-order a primitive may sit at.
const MaxDepth = 999

// Point is a vertex in figure units.
type Point struct {
	X, Y int
}

// ArrowSpec describes an arrowhead at one end of a line, arc or spline.
type ArrowSpec struct {
	Type      int
	Style     int
	Thickness float64
	Width     float64
	Height    float64
}

// ShapeFactor controls the curvature of an X-spline at one control point:
// 0 is a sharp corner, positive values approximate and negative values
// interpolate the point.
type ShapeFactor float64

// Attrs holds the fields shared by every primitive kind.
type Attrs struct {
	Depth     int
	PenColor  Color
	FillColor Color
	FillStyle int
	Thickness int
	LineStyle int
	StyleVal  float64
	CapStyle  int
	JoinStyle int
	Comment   string
}

// Attributes returns the shared attribute block.
func (a *Attrs) Attributes() *Attrs {
	return a
}

// Object is any of the five primitive kinds.
type Object interface {
	Attributes() *Attrs
	Extent() Box
}

type LineKind int

const (
	Polyline LineKind = iota + 1
	BoxLine
	Polygon
	ArcBox
	PictureBox
)

// Line is a polyline, box, polygon, rounded box or picture frame. Only
// PictureBox lines carry a Pic.
type Line struct {
	Attrs
	Kind     LineKind
	Radius   int
	Points   []Point
	Forward  *ArrowSpec
	Backward *ArrowSpec
	Pic      *Picture
}

type ArcKind int

const (
	OpenArc ArcKind = iota + 1
	PieArc
)

// Arc is a circular arc through three points.
type Arc struct {
	Attrs
	Kind      ArcKind
	Clockwise bool
	CenterX   float64
	CenterY   float64
	Points    [3]Point
	Forward   *ArrowSpec
	Backward  *ArrowSpec
}

type EllipseKind int

const (
	EllipseByRadii EllipseKind = iota + 1
	EllipseByDiameter
	CircleByRadius
	CircleByDiameter
)

// Ellipse is an ellipse or circle rotated by Angle radians around Center.
type Ellipse struct {
	Attrs
	Kind   EllipseKind
	Angle  float64
	Center Point
	Radii  Point
	Start  Point
	End    Point
}

type SplineKind int

const (
	OpenApprox SplineKind = iota
	ClosedApprox
	OpenInterp
	ClosedInterp
	OpenX
	ClosedX
)

// Closed reports whether the spline joins its last point to its first.
func (k SplineKind) Closed() bool {
	return k == ClosedApprox || k == ClosedInterp || k == ClosedX
}

// Spline is an X-spline. Factors has one entry per point.
type Spline struct {
	Attrs
	Kind     SplineKind
	Points   []Point
	Factors  []ShapeFactor
	Forward  *ArrowSpec
	Backward *ArrowSpec
}

type Justify int

const (
	JustifyLeft Justify = iota
	JustifyCenter
	JustifyRight
)

// Text is a single line of text anchored at Base. Length, Ascent and
// Descent are the rendered metrics supplied by the drawing layer.
type Text struct {
	Attrs
	Justify Justify
	Font    int
	Size    float64
	Angle   float64
	Flags   int
	Base    Point
	Length  int
	Ascent  int
	Descent int
	String  string
}
