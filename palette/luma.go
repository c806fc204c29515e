package palette

import (
	"fmt"
	"image/color"

	"github.com/alefaraci/figcolor/figure"
	"github.com/lucasb-eyer/go-colorful"
)

// Luma returns the brightness of c on a 0..255 scale using the
// 0.30/0.59/0.11 weighting. Every brightness decision in the editor goes
// through it.
func Luma(c color.RGBA) float64 {
	return 0.30*float64(c.R) + 0.59*float64(c.G) + 0.11*float64(c.B)
}

// Contrast returns black for light colors and white for dark ones.
func Contrast(c color.RGBA) figure.Color {
	if Luma(c) >= 127.5 {
		return figure.Black
	}
	return figure.White
}

// NearestStandard returns the standard color closest to c in CIE Lab.
func NearestStandard(c color.RGBA) figure.Color {
	want, _ := colorful.MakeColor(c)
	best, bestDist := figure.Black, -1.0
	for i := range figure.NumStdColors {
		rgb, _ := figure.StandardRGB(figure.Color(i))
		sc, _ := colorful.MakeColor(rgb)
		if d := want.DistanceLab(sc); bestDist < 0 || d < bestDist {
			best, bestDist = figure.Color(i), d
		}
	}
	return best
}

// ParseHex parses a "#rrggbb" color.
func ParseHex(s string) (color.RGBA, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}, nil
}
