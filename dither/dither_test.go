package dither

import (
	"context"
	"image"
	"testing"

	"github.com/alefaraci/figcolor/figure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handle struct{ released bool }

func (h *handle) Release() { h.released = true }

func picture(w, h int, cmap []figure.PaletteColor, pix func(x, y int) byte) *figure.Picture {
	p := figure.NewPicture(figure.PicPNG, "test.png")
	p.Size = image.Pt(w, h)
	p.Cmap = cmap
	p.Raster = make([]byte, w*h)
	for y := range h {
		for x := range w {
			p.Raster[y*w+x] = pix(x, y)
		}
	}
	return p
}

var grayRamp = func() []figure.PaletteColor {
	cmap := make([]figure.PaletteColor, 16)
	for i := range cmap {
		v := uint8(i * 17)
		cmap[i] = figure.PaletteColor{R: v, G: v, B: v}
	}
	return cmap
}()

func ramp(x, y int) byte { return byte((x + y) % 16) }

func TestReduceToMonochromeIsDeterministic(t *testing.T) {
	a := picture(37, 11, grayRamp, ramp)
	b := picture(37, 11, grayRamp, ramp)
	require.NoError(t, ReduceToMonochrome(a, 42))
	require.NoError(t, ReduceToMonochrome(b, 42))
	assert.Equal(t, a.Raster, b.Raster)

	c := picture(37, 11, grayRamp, ramp)
	require.NoError(t, ReduceToMonochrome(c, 7))
	assert.Len(t, c.Raster, len(a.Raster))
}

func TestReduceToMonochromeLayout(t *testing.T) {
	p := picture(10, 3, grayRamp, ramp)
	h := &handle{}
	p.SetDisplay(h)
	p.Transparent = 2

	require.NoError(t, ReduceToMonochrome(p, 1))
	assert.True(t, p.Monochrome())
	assert.Zero(t, p.NumColors())
	assert.Equal(t, -1, p.Transparent)
	assert.Len(t, p.Raster, 2*3)
	assert.NoError(t, p.Validate())
	assert.True(t, h.released)
	assert.Nil(t, p.Display())
}

func TestReduceToMonochromeSolidColors(t *testing.T) {
	black := picture(9, 4, []figure.PaletteColor{{}}, func(int, int) byte { return 0 })
	require.NoError(t, ReduceToMonochrome(black, 3))
	for y := range 4 {
		assert.Equal(t, []byte{0xff, 0x80}, black.Raster[y*2:y*2+2], "row %d", y)
	}

	white := picture(9, 4, []figure.PaletteColor{{R: 255, G: 255, B: 255}}, func(int, int) byte { return 0 })
	require.NoError(t, ReduceToMonochrome(white, 3))
	assert.Equal(t, make([]byte, 8), white.Raster)
}

func TestReduceToMonochromeTransparentIsWhite(t *testing.T) {
	p := picture(8, 2, []figure.PaletteColor{{}, {R: 10}}, func(int, int) byte { return 1 })
	p.Transparent = 1
	require.NoError(t, ReduceToMonochrome(p, 0))
	assert.Equal(t, []byte{0, 0}, p.Raster)
}

func TestReduceToMonochromeHalfGray(t *testing.T) {
	p := picture(64, 64, []figure.PaletteColor{{R: 128, G: 128, B: 128}}, func(int, int) byte { return 0 })
	require.NoError(t, ReduceToMonochrome(p, 5))
	set := 0
	for _, b := range p.Raster {
		for ; b != 0; b &= b - 1 {
			set++
		}
	}
	assert.InDelta(t, 64*64/2, set, 64*64/10)
}

func TestReduceToMonochromeRejectsMonochrome(t *testing.T) {
	p := figure.NewPicture(figure.PicXBM, "m.xbm")
	p.Size = image.Pt(8, 1)
	p.Raster = []byte{0xaa}
	err := ReduceToMonochrome(p, 0)
	assert.ErrorIs(t, err, ErrNotIndexed)
	assert.Equal(t, []byte{0xaa}, p.Raster)
}

func TestReduceToMonochromeRejectsInvalid(t *testing.T) {
	p := picture(2, 2, grayRamp, ramp)
	p.Raster = p.Raster[:3]
	assert.ErrorIs(t, ReduceToMonochrome(p, 0), figure.ErrInvalidPicture)
	assert.Len(t, p.Cmap, 16)
}

func TestDocument(t *testing.T) {
	bad := picture(2, 2, grayRamp, ramp)
	bad.Raster = bad.Raster[:1]
	good := picture(4, 4, grayRamp, ramp)
	mono := figure.NewPicture(figure.PicXBM, "m.xbm")

	root := figure.New()
	for _, p := range []*figure.Picture{bad, good, mono} {
		root.Add(&figure.Line{Kind: figure.PictureBox, Points: []figure.Point{{X: 0, Y: 0}, {X: 10, Y: 10}}, Pic: p})
	}

	n, err := Document(context.Background(), root, 9)
	assert.Equal(t, 1, n)
	assert.ErrorIs(t, err, figure.ErrInvalidPicture)
	assert.True(t, good.Monochrome())
	assert.False(t, bad.Monochrome())
}

func TestDocumentCanceled(t *testing.T) {
	p := picture(4, 4, grayRamp, ramp)
	root := figure.New()
	root.Add(&figure.Line{Kind: figure.PictureBox, Points: []figure.Point{{X: 0, Y: 0}}, Pic: p})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Document(ctx, root, 0)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, p.Monochrome())
}
