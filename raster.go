package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/alefaraci/figcolor/dither"
	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/logger"
	"github.com/alefaraci/figcolor/quant"
)

// figure units per inch; pictures are laid out at their pixel size at 80 dpi.
const (
	unitsPerInch = 1200
	unitsPerPx   = unitsPerInch / 80
	cellGap      = unitsPerInch / 4
	rowWidth     = 8 * unitsPerInch
)

var errNoRasters = errors.New("no raster files found")

var rasterExts = []string{".png", ".gif", ".jpg", ".jpeg", ".bmp", ".tif", ".tiff", ".webp"}

func isRaster(path string) bool {
	return slices.Contains(rasterExts, strings.ToLower(filepath.Ext(path)))
}

// importer turns raster files into pictures with at most 256 local colors.
type importer struct {
	quant      quant.Config
	monochrome bool
	seed       uint64
}

// decodePicture reads a raster file. Images with more than 256 colors are
// folded onto a trained palette with Floyd-Steinberg error diffusion.
func (im *importer) decodePicture(ctx context.Context, path string) (*figure.Picture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	pal, err := im.paletted(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("reducing %s: %w", path, err)
	}

	b := pal.Bounds()
	p := figure.NewPicture(figure.PictureTypeByName(format), path)
	p.Size = image.Pt(b.Dx(), b.Dy())
	if b.Dx() > 0 {
		p.HWRatio = float64(b.Dy()) / float64(b.Dx())
	}
	p.Raster = make([]byte, 0, b.Dx()*b.Dy())
	for y := range b.Dy() {
		off := y * pal.Stride
		p.Raster = append(p.Raster, pal.Pix[off:off+b.Dx()]...)
	}
	for i, c := range pal.Palette {
		rgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		if rgba.A == 0 && p.Transparent < 0 {
			p.Transparent = i
		}
		p.Cmap = append(p.Cmap, figure.PaletteColor{R: rgba.R, G: rgba.G, B: rgba.B, Pixel: -1})
	}

	if im.monochrome {
		if err := dither.ReduceToMonochrome(p, im.seed); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// paletted returns img as a paletted image of at most 256 colors.
func (im *importer) paletted(ctx context.Context, img image.Image) (*image.Paletted, error) {
	if p, ok := img.(*image.Paletted); ok && len(p.Palette) <= figure.MaxColors {
		return p, nil
	}

	b := img.Bounds()
	index := make(map[color.NRGBA]int)
	samples := make([]byte, 0, 3*b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			nc := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			samples = append(samples, nc.R, nc.G, nc.B)
			if _, ok := index[nc]; !ok && len(index) <= figure.MaxColors {
				index[nc] = len(index)
			}
		}
	}

	out := image.NewPaletted(b, nil)
	if len(index) <= figure.MaxColors {
		exact := make(color.Palette, len(index))
		for c, i := range index {
			exact[i] = c
		}
		out.Palette = exact
		draw.Draw(out, b, img, b.Min, draw.Src)
		return out, nil
	}

	q := quant.NewNeuQuant(im.quant)
	if _, err := train(ctx, q, samples, figure.MaxColors); err != nil {
		return nil, err
	}
	out.Palette = q.Palette()
	draw.FloydSteinberg.Draw(out, b, img, b.Min)
	return out, nil
}

// train honours one request for more samples, as the remap engine does.
func train(ctx context.Context, q quant.Engine, samples []byte, n int) ([]color.RGBA, error) {
	pal, err := q.Train(ctx, samples, n)
	var need *quant.NeedSamplesError
	if errors.As(err, &need) {
		pal, err = q.Train(ctx, quant.Repeat(samples, need.Multiplier), n)
	}
	return pal, err
}

// importPath builds a document from a raster file or a directory tree.
// Every directory holding rasters becomes one page, chained in walk order.
func (im *importer) importPath(ctx context.Context, root string) (*figure.Compound, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		p, err := im.decodePicture(ctx, root)
		if err != nil {
			return nil, err
		}
		page := figure.New()
		layout(page, []*figure.Picture{p})
		return page, nil
	}

	return im.importDirs(ctx, root)
}

// importDirs imports every raster below roots. Directories appearing under
// more than one root are imported once.
func (im *importer) importDirs(ctx context.Context, roots ...string) (*figure.Compound, error) {
	byDir := make(map[string][]string)
	var dirs []string
	for _, root := range roots {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() || !isRaster(path) {
				return nil
			}
			dir := filepath.Dir(path)
			if _, ok := byDir[dir]; !ok {
				dirs = append(dirs, dir)
			}
			if !slices.Contains(byDir[dir], path) {
				byDir[dir] = append(byDir[dir], path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return im.importFiles(ctx, dirs, byDir)
}

func (im *importer) importFiles(ctx context.Context, dirs []string, byDir map[string][]string) (*figure.Compound, error) {
	log := logger.L(ctx)
	var (
		doc  *figure.Compound
		errs error
	)
	for _, dir := range dirs {
		var pics []*figure.Picture
		for _, path := range byDir[dir] {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, err := im.decodePicture(ctx, path)
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			pics = append(pics, p)
		}
		if len(pics) == 0 {
			continue
		}
		page := figure.New()
		page.Comment = dir
		layout(page, pics)
		if doc == nil {
			doc = page
		} else {
			doc.Append(page)
		}
		log.Debug("imported page", zap.String("dir", dir), zap.Int("pictures", len(pics)))
	}
	if errs != nil {
		log.Warn("some rasters could not be imported", zap.Error(errs))
	}
	if doc == nil {
		if errs != nil {
			return nil, errs
		}
		return nil, errNoRasters
	}
	return doc, nil
}

// layout places pictures left to right in rows on page.
func layout(page *figure.Compound, pics []*figure.Picture) {
	x, y, rowH := 0, 0, 0
	for _, p := range pics {
		w, h := p.Size.X*unitsPerPx, p.Size.Y*unitsPerPx
		if x > 0 && x+w > rowWidth {
			x, y, rowH = 0, y+rowH+cellGap, 0
		}
		page.Add(&figure.Line{
			Attrs: figure.Attrs{
				Depth:     figure.MaxDepth / 2,
				PenColor:  figure.Default,
				FillColor: figure.Default,
			},
			Kind:   figure.PictureBox,
			Points: []figure.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}, {X: x, Y: y}},
			Pic:    p,
		})
		x += w + cellGap
		rowH = max(rowH, h)
	}
	page.ComputeBounds()
}
