package trace

import (
	"image"
	"testing"

	"github.com/alefaraci/figcolor/figure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(p *figure.Picture, x0, y0, x1, y1 int) *figure.Line {
	return &figure.Line{
		Kind:   figure.PictureBox,
		Points: []figure.Point{{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0}},
		Pic:    p,
	}
}

// square returns a 16x16 monochrome picture with a solid 8x8 square in
// its middle.
func square() *figure.Picture {
	p := figure.NewPicture(figure.PicXBM, "square.xbm")
	p.Size = image.Pt(16, 16)
	p.Raster = make([]byte, 2*16)
	for y := 4; y < 12; y++ {
		p.Raster[y*2] = 0x0f
		p.Raster[y*2+1] = 0xf0
	}
	return p
}

func TestPictureTracesSquare(t *testing.T) {
	l := frame(square(), 1000, 2000, 2600, 3600)
	c, err := Picture(l, DefaultOptions())
	require.NoError(t, err)
	require.NotEmpty(t, c.Lines)

	outer := c.Lines[0]
	assert.Equal(t, figure.Polygon, outer.Kind)
	assert.Equal(t, figure.Black, outer.FillColor)
	assert.Equal(t, 50, outer.Depth)
	assert.Equal(t, outer.Points[0], outer.Points[len(outer.Points)-1])

	frameBox := figure.Box{NW: figure.Point{X: 1000, Y: 2000}, SE: figure.Point{X: 2600, Y: 3600}}
	for _, l := range c.Lines {
		for _, pt := range l.Points {
			assert.True(t, frameBox.Contains(figure.Box{NW: pt, SE: pt}), "point %v outside frame", pt)
		}
	}
	assert.True(t, c.Box.NW.X >= 1300 && c.Box.SE.X <= 2300, "bounds %v", c.Box)
	assert.True(t, c.Box.NW.Y >= 2300 && c.Box.SE.Y <= 3300, "bounds %v", c.Box)
}

func TestPictureTracesHoles(t *testing.T) {
	p := figure.NewPicture(figure.PicXBM, "ring.xbm")
	p.Size = image.Pt(16, 16)
	p.Raster = make([]byte, 2*16)
	for y := 2; y < 14; y++ {
		p.Raster[y*2] = 0x3f
		p.Raster[y*2+1] = 0xfc
		if y >= 6 && y < 10 {
			p.Raster[y*2] = 0x3c
			p.Raster[y*2+1] = 0x3c
		}
	}
	c, err := Picture(frame(p, 0, 0, 160, 160), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, c.Lines, 2)
	assert.Equal(t, figure.White, c.Lines[1].FillColor)
	assert.Equal(t, 49, c.Lines[1].Depth)
}

func TestPictureTracesDarkColors(t *testing.T) {
	p := figure.NewPicture(figure.PicPNG, "c.png")
	p.Size = image.Pt(8, 8)
	p.Cmap = []figure.PaletteColor{{R: 250, G: 250, B: 250}, {R: 20, G: 20, B: 90}}
	p.Raster = make([]byte, 64)
	for y := 2; y < 6; y++ {
		for x := 2; x < 6; x++ {
			p.Raster[y*8+x] = 1
		}
	}
	c, err := Picture(frame(p, 0, 0, 80, 80), DefaultOptions())
	require.NoError(t, err)
	assert.NotEmpty(t, c.Lines)

	p.Transparent = 1
	c, err = Picture(frame(p, 0, 0, 80, 80), DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, c.Lines)
}

func TestPictureRequiresRaster(t *testing.T) {
	_, err := Picture(frame(nil, 0, 0, 10, 10), DefaultOptions())
	assert.ErrorIs(t, err, ErrNoPicture)
	_, err = Picture(frame(figure.NewPicture(figure.PicPNG, "x.png"), 0, 0, 10, 10), DefaultOptions())
	assert.ErrorIs(t, err, ErrNoPicture)

	bad := square()
	bad.Raster = bad.Raster[:5]
	_, err = Picture(frame(bad, 0, 0, 10, 10), DefaultOptions())
	assert.ErrorIs(t, err, figure.ErrInvalidPicture)
}
