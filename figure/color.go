package figure

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Color is a pen or fill color of a primitive. Values below NumStdColors
// name one of the fixed standard colors; values from NumStdColors up index
// the user-defined palette. Default leaves the choice to the drawing layer.
type Color int

const (
	Default Color = -1

	Black Color = iota - 1
	Blue
	Green
	Cyan
	Red
	Magenta
	Yellow
	White
	Blue4
	Blue3
	Blue2
	LtBlue
	Green4
	Green3
	Green2
	Cyan4
	Cyan3
	Cyan2
	Red4
	Red3
	Red2
	Magenta4
	Magenta3
	Magenta2
	Brown4
	Brown3
	Brown2
	Pink4
	Pink3
	Pink2
	Pink
	Gold
)

const (
	NumStdColors  = 32
	MaxUserColors = 512
)

var stdColors = [NumStdColors]struct {
	name string
	rgb  color.RGBA
}{
	{"black", color.RGBA{0x00, 0x00, 0x00, 0xff}},
	{"blue", color.RGBA{0x00, 0x00, 0xff, 0xff}},
	{"green", color.RGBA{0x00, 0xff, 0x00, 0xff}},
	{"cyan", color.RGBA{0x00, 0xff, 0xff, 0xff}},
	{"red", color.RGBA{0xff, 0x00, 0x00, 0xff}},
	{"magenta", color.RGBA{0xff, 0x00, 0xff, 0xff}},
	{"yellow", color.RGBA{0xff, 0xff, 0x00, 0xff}},
	{"white", color.RGBA{0xff, 0xff, 0xff, 0xff}},
	{"blue4", color.RGBA{0x00, 0x00, 0x90, 0xff}},
	{"blue3", color.RGBA{0x00, 0x00, 0xb0, 0xff}},
	{"blue2", color.RGBA{0x00, 0x00, 0xd0, 0xff}},
	{"ltblue", color.RGBA{0x87, 0xce, 0xff, 0xff}},
	{"green4", color.RGBA{0x00, 0x90, 0x00, 0xff}},
	{"green3", color.RGBA{0x00, 0xb0, 0x00, 0xff}},
	{"green2", color.RGBA{0x00, 0xd0, 0x00, 0xff}},
	{"cyan4", color.RGBA{0x00, 0x90, 0x90, 0xff}},
	{"cyan3", color.RGBA{0x00, 0xb0, 0xb0, 0xff}},
	{"cyan2", color.RGBA{0x00, 0xd0, 0xd0, 0xff}},
	{"red4", color.RGBA{0x90, 0x00, 0x00, 0xff}},
	{"red3", color.RGBA{0xb0, 0x00, 0x00, 0xff}},
	{"red2", color.RGBA{0xd0, 0x00, 0x00, 0xff}},
	{"magenta4", color.RGBA{0x90, 0x00, 0x90, 0xff}},
	{"magenta3", color.RGBA{0xb0, 0x00, 0xb0, 0xff}},
	{"magenta2", color.RGBA{0xd0, 0x00, 0xd0, 0xff}},
	{"brown4", color.RGBA{0x80, 0x30, 0x00, 0xff}},
	{"brown3", color.RGBA{0xa0, 0x40, 0x00, 0xff}},
	{"brown2", color.RGBA{0xc0, 0x60, 0x00, 0xff}},
	{"pink4", color.RGBA{0xff, 0x80, 0x80, 0xff}},
	{"pink3", color.RGBA{0xff, 0xa0, 0xa0, 0xff}},
	{"pink2", color.RGBA{0xff, 0xc0, 0xc0, 0xff}},
	{"pink", color.RGBA{0xff, 0xe0, 0xe0, 0xff}},
	{"gold", color.RGBA{0xff, 0xd7, 0x00, 0xff}},
}

// IsStandard reports whether c is one of the fixed standard colors.
func (c Color) IsStandard() bool {
	return c >= 0 && c < NumStdColors
}

// IsUser reports whether c indexes the user-defined palette.
func (c Color) IsUser() bool {
	return c >= NumStdColors && c < NumStdColors+MaxUserColors
}

// UserIndex returns the position of c in the user palette, or -1.
func (c Color) UserIndex() int {
	if !c.IsUser() {
		return -1
	}
	return int(c - NumStdColors)
}

// UserColor returns the Color for slot i of the user palette.
func UserColor(i int) Color {
	return Color(NumStdColors + i)
}

// StandardRGB returns the fixed RGB value of a standard color.
func StandardRGB(c Color) (color.RGBA, bool) {
	if !c.IsStandard() {
		return color.RGBA{}, false
	}
	return stdColors[c].rgb, true
}

// String returns the symbolic name of a standard color, "default", or the
// raw index for user colors. ParseColor accepts every form String produces.
func (c Color) String() string {
	switch {
	case c == Default:
		return "default"
	case c.IsStandard():
		return stdColors[c].name
	default:
		return strconv.Itoa(int(c))
	}
}

// ParseColor parses a color name or raw index.
func ParseColor(s string) (Color, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "default" {
		return Default, nil
	}
	for i, sc := range stdColors {
		if sc.name == s {
			return Color(i), nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Default, fmt.Errorf("unknown color %q", s)
	}
	c := Color(n)
	if c != Default && !c.IsStandard() && !c.IsUser() {
		return Default, fmt.Errorf("color index %d out of range", n)
	}
	return c, nil
}
