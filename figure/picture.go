package figure

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// MaxColors is the largest local palette a picture may carry.
const MaxColors = 256

// ErrInvalidPicture reports a picture whose raster does not match its
// declared size or palette.
var ErrInvalidPicture = errors.New("invalid picture")

type PictureType int

const (
	PicUnknown PictureType = iota
	PicEPS
	PicGIF
	PicJPEG
	PicPCX
	PicPNG
	PicPPM
	PicTIFF
	PicXBM
	PicXPM
	PicBMP
	PicWebP
	PicFig
)

var pictureTypeNames = [...]string{
	PicUnknown: "unknown",
	PicEPS:     "eps",
	PicGIF:     "gif",
	PicJPEG:    "jpeg",
	PicPCX:     "pcx",
	PicPNG:     "png",
	PicPPM:     "ppm",
	PicTIFF:    "tiff",
	PicXBM:     "xbm",
	PicXPM:     "xpm",
	PicBMP:     "bmp",
	PicWebP:    "webp",
	PicFig:     "fig",
}

func (t PictureType) String() string {
	if t < 0 || int(t) >= len(pictureTypeNames) {
		return fmt.Sprintf("PictureType(%d)", int(t))
	}
	return pictureTypeNames[t]
}

// PictureTypeByName maps a decoder format name ("png", "gif", ...) to its type.
func PictureTypeByName(name string) PictureType {
	for i, n := range pictureTypeNames {
		if n == name {
			return PictureType(i)
		}
	}
	return PicUnknown
}

// PaletteColor is one entry of a picture's local palette. Pixel is the
// global palette slot the drawing layer paints this color with.
type PaletteColor struct {
	R, G, B uint8
	Pixel   int
}

// RGBA returns the entry's color, fully opaque.
func (c PaletteColor) RGBA() color.RGBA {
	return color.RGBA{c.R, c.G, c.B, 0xff}
}

// Handle is a drawing-layer resource derived from a picture, such as a
// rendered pixmap. It is released whenever the picture is recolored.
type Handle interface {
	Release()
}

// Picture is a decoded raster attached to a PictureBox line.
//
// With a non-empty Cmap the raster holds one byte per pixel indexing Cmap;
// with an empty Cmap the picture is monochrome and the raster holds 1-bit
// rows, most significant bit first, each padded to a byte boundary. A set
// bit is foreground.
type Picture struct {
	Type        PictureType
	File        string
	Size        image.Point
	HWRatio     float64
	Raster      []byte
	Cmap        []PaletteColor
	Transparent int // index into Cmap, or -1
	Figure      *Compound

	display Handle
}

// NewPicture returns an undecoded picture with no transparent color.
func NewPicture(t PictureType, file string) *Picture {
	return &Picture{Type: t, File: file, Transparent: -1}
}

// NumColors returns the number of valid local palette entries.
func (p *Picture) NumColors() int {
	return len(p.Cmap)
}

// Monochrome reports whether the raster is packed 1-bit.
func (p *Picture) Monochrome() bool {
	return len(p.Cmap) == 0
}

// Empty reports whether there is no raster to draw.
func (p *Picture) Empty() bool {
	return len(p.Raster) == 0 || p.Size.X <= 0 || p.Size.Y <= 0
}

// Stride returns the number of raster bytes per row.
func (p *Picture) Stride() int {
	if p.Monochrome() {
		return (p.Size.X + 7) / 8
	}
	return p.Size.X
}

// Validate checks the raster against the declared size and palette.
func (p *Picture) Validate() error {
	if len(p.Cmap) > MaxColors {
		return fmt.Errorf("%w: %d colors, at most %d allowed", ErrInvalidPicture, len(p.Cmap), MaxColors)
	}
	if p.Size.X < 0 || p.Size.Y < 0 {
		return fmt.Errorf("%w: negative size %v", ErrInvalidPicture, p.Size)
	}
	if p.Transparent != -1 && (p.Transparent < 0 || p.Transparent >= len(p.Cmap)) {
		return fmt.Errorf("%w: transparent index %d", ErrInvalidPicture, p.Transparent)
	}
	if p.Raster == nil {
		return nil
	}
	if want := p.Stride() * p.Size.Y; len(p.Raster) != want {
		return fmt.Errorf("%w: raster has %d bytes, want %d", ErrInvalidPicture, len(p.Raster), want)
	}
	if p.Monochrome() {
		return nil
	}
	n := len(p.Cmap)
	for i, b := range p.Raster {
		if int(b) >= n {
			return fmt.Errorf("%w: pixel %d indexes color %d of %d", ErrInvalidPicture, i, b, n)
		}
	}
	return nil
}

// Display returns the cached drawing-layer handle, or nil.
func (p *Picture) Display() Handle {
	return p.display
}

// SetDisplay caches h, releasing any handle it replaces.
func (p *Picture) SetDisplay(h Handle) {
	if p.display != nil && p.display != h {
		p.display.Release()
	}
	p.display = h
}

// InvalidateDisplay releases the cached handle so the drawing layer
// regenerates it on next use.
func (p *Picture) InvalidateDisplay() {
	if p.display != nil {
		p.display.Release()
		p.display = nil
	}
}

var monoPalette = color.Palette{color.White, color.Black}

// Image returns a view of the raster through the local palette. A
// monochrome raster is expanded to a two-color image with foreground in
// black. Color pictures share the raster; writes through the image
// change the picture. Image returns nil for an empty picture.
func (p *Picture) Image() *image.Paletted {
	if p.Empty() {
		return nil
	}
	w, h := p.Size.X, p.Size.Y
	r := image.Rect(0, 0, w, h)
	if !p.Monochrome() {
		pal := make(color.Palette, len(p.Cmap))
		for i, c := range p.Cmap {
			pal[i] = c.RGBA()
		}
		return &image.Paletted{Pix: p.Raster, Stride: w, Rect: r, Palette: pal}
	}
	img := image.NewPaletted(r, monoPalette)
	stride := p.Stride()
	for y := range h {
		row := p.Raster[y*stride : (y+1)*stride]
		for x := range w {
			if row[x>>3]&(0x80>>(x&7)) != 0 {
				img.Pix[y*w+x] = 1
			}
		}
	}
	return img
}
