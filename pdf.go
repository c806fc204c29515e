package main

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/hex"
	"fmt"
	"image/color"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/palette"
)

const (
	ptPerUnit  = 72.0 / unitsPerInch
	pageMargin = 18.0 // points
)

// Pooled zlib writers to amortize internal hash table allocation.
var zlibWriterPool = sync.Pool{
	New: func() any {
		w, _ := zlib.NewWriterLevel(&bytes.Buffer{}, zlib.BestSpeed)
		return w
	},
}

func compressZlib(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data) / 4)

	w := zlibWriterPool.Get().(*zlib.Writer)
	defer zlibWriterPool.Put(w)
	w.Reset(&buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// appendFloat4 appends a float formatted to 4 decimal places (like %.4f).
func appendFloat4(buf []byte, f float64) []byte {
	rounded := math.Round(f*10000) / 10000
	return strconv.AppendFloat(buf, rounded, 'f', 4, 64)
}

type pdfObject struct {
	id   int
	data []byte
}

type proofPage struct {
	objects []pdfObject
	width   float64
	height  float64
}

// proofBuilder renders document pages through the display colormap, so a
// proof shows every picture in the colors its remapped slots hold.
type proofBuilder struct {
	pal    *palette.Manager
	colors []color.RGBA
}

func newProofBuilder(pal *palette.Manager) *proofBuilder {
	return &proofBuilder{pal: pal, colors: pal.Colormap().Colors()}
}

// slotColor returns the colormap color of slot, falling back to c when the
// slot is unset.
func (pb *proofBuilder) slotColor(slot int, c color.RGBA) color.RGBA {
	if slot >= 0 && slot < len(pb.colors) {
		return pb.colors[slot]
	}
	return c
}

func (pb *proofBuilder) objectColor(c figure.Color) color.RGBA {
	if rgb, ok := pb.pal.RGB(c); ok {
		if s := pb.pal.Slot(c); s != palette.NoSlot {
			return pb.slotColor(int(s), rgb)
		}
		return rgb
	}
	return color.RGBA{0, 0, 0, 0xff}
}

func (pb *proofBuilder) buildPage(page *figure.Compound, objStart int) (proofPage, int) {
	box := page.ComputeBounds()
	width := float64(box.SE.X-box.NW.X)*ptPerUnit + 2*pageMargin
	height := float64(box.SE.Y-box.NW.Y)*ptPerUnit + 2*pageMargin
	toPt := func(p figure.Point) (float64, float64) {
		return pageMargin + float64(p.X-box.NW.X)*ptPerUnit,
			height - pageMargin - float64(p.Y-box.NW.Y)*ptPerUnit
	}

	pageObjID := objStart
	contentsObjID := objStart + 1
	numObjects := 2

	content := make([]byte, 0, 16*1024)
	var images []pdfObject
	var xobjects strings.Builder

	for o := range page.Objects() {
		l, ok := o.(*figure.Line)
		if !ok || len(l.Points) == 0 {
			continue
		}
		if l.Pic != nil && !l.Pic.Empty() {
			imgID := objStart + numObjects
			numObjects++
			name := fmt.Sprintf("/Im%d", len(images)+1)
			images = append(images, pb.imageObject(imgID, l.Pic))
			fmt.Fprintf(&xobjects, "%s %d 0 R ", name, imgID)

			ext := l.Extent()
			x0, y1 := toPt(ext.NW)
			x1, y0 := toPt(ext.SE)
			content = append(content, "q\n"...)
			if l.Pic.Monochrome() {
				content = append(content, "0 g\n"...)
			}
			content = appendFloat4(content, x1-x0)
			content = append(content, " 0 0 "...)
			content = appendFloat4(content, y1-y0)
			content = append(content, ' ')
			content = appendFloat4(content, x0)
			content = append(content, ' ')
			content = appendFloat4(content, y0)
			content = append(content, " cm\n"...)
			content = append(content, name...)
			content = append(content, " Do\nQ\n"...)
			continue
		}
		if len(l.Points) < 2 {
			continue
		}
		content = pb.appendLine(content, l, toPt)
	}

	resources := "<< >>"
	if len(images) > 0 {
		resources = "<< /XObject << " + xobjects.String() + ">> >>"
	}
	pageObj := fmt.Sprintf(
		"%d 0 obj\n<< /Type /Page\n   /Parent 2 0 R\n   /MediaBox [0 0 %.2f %.2f]\n   /Contents %d 0 R\n   /Resources %s\n>>\nendobj\n",
		pageObjID, width, height, contentsObjID, resources,
	)
	contentsObj := fmt.Sprintf(
		"%d 0 obj\n<< /Length %d >>\nstream\n%sendstream\nendobj\n",
		contentsObjID, len(content), content,
	)

	objects := []pdfObject{
		{id: pageObjID, data: []byte(pageObj)},
		{id: contentsObjID, data: []byte(contentsObj)},
	}
	objects = append(objects, images...)
	return proofPage{objects: objects, width: width, height: height}, numObjects
}

func (pb *proofBuilder) appendLine(content []byte, l *figure.Line, toPt func(figure.Point) (float64, float64)) []byte {
	fill := l.FillStyle > 0 && l.FillColor != figure.Default
	c := pb.objectColor(l.PenColor)
	op := " RG\n"
	if fill {
		c = pb.objectColor(l.FillColor)
		op = " rg\n"
	}

	content = append(content, "q\n"...)
	content = appendFloat4(content, float64(c.R)/255.0)
	content = append(content, ' ')
	content = appendFloat4(content, float64(c.G)/255.0)
	content = append(content, ' ')
	content = appendFloat4(content, float64(c.B)/255.0)
	content = append(content, op...)
	if !fill {
		content = appendFloat4(content, max(float64(l.Thickness), 1)*72.0/80) // thickness is in 1/80 inch
		content = append(content, " w\n"...)
	}
	for i, p := range l.Points {
		x, y := toPt(p)
		content = appendFloat4(content, x)
		content = append(content, ' ')
		content = appendFloat4(content, y)
		if i == 0 {
			content = append(content, " m\n"...)
		} else {
			content = append(content, " l\n"...)
		}
	}
	switch {
	case fill:
		content = append(content, "h f\n"...)
	case l.Kind == figure.Polyline:
		content = append(content, "S\n"...)
	default:
		content = append(content, "h S\n"...)
	}
	return append(content, "Q\n"...)
}

// imageObject encodes a picture as an image XObject. Color pictures use an
// indexed color space built from the colormap slots their palette entries
// were remapped to; monochrome pictures become stencil masks.
func (pb *proofBuilder) imageObject(id int, p *figure.Picture) pdfObject {
	var dict string
	if p.Monochrome() {
		dict = fmt.Sprintf("/Width %d\n   /Height %d\n   /ImageMask true\n   /BitsPerComponent 1\n   /Decode [1 0]",
			p.Size.X, p.Size.Y)
	} else {
		lookup := make([]byte, 0, 3*len(p.Cmap))
		for _, c := range p.Cmap {
			rgb := pb.slotColor(c.Pixel, c.RGBA())
			lookup = append(lookup, rgb.R, rgb.G, rgb.B)
		}
		dict = fmt.Sprintf("/Width %d\n   /Height %d\n   /ColorSpace [/Indexed /DeviceRGB %d <%s>]\n   /BitsPerComponent 8",
			p.Size.X, p.Size.Y, len(p.Cmap)-1, hex.EncodeToString(lookup))
	}

	data, filter := p.Raster, ""
	if compressed, err := compressZlib(p.Raster); err == nil {
		data, filter = compressed, "\n   /Filter /FlateDecode"
	}

	var obj bytes.Buffer
	fmt.Fprintf(&obj, "%d 0 obj\n<< /Type /XObject\n   /Subtype /Image\n   %s%s\n   /Length %d >>\nstream\n",
		id, dict, filter, len(data))
	obj.Write(data)
	obj.WriteString("\nendstream\nendobj\n")
	return pdfObject{id: id, data: obj.Bytes()}
}

// pdfWriter wraps a buffered writer with offset tracking for PDF generation.
type pdfWriter struct {
	w      *bufio.Writer
	offset uint64
}

func (pw *pdfWriter) write(data []byte) {
	pw.w.Write(data)
	pw.offset += uint64(len(data))
}

func (pw *pdfWriter) writeStr(s string) {
	pw.w.WriteString(s)
	pw.offset += uint64(len(s))
}

func (pw *pdfWriter) writeHeader() {
	pw.write([]byte("%PDF-1.7\n%\xe2\xe3\xcf\xd3\n"))
}

func (pw *pdfWriter) writeXrefTrailer(xrefOffsets []uint64, totalObjects int) {
	xrefStart := pw.offset
	pw.writeStr("xref\n")
	pw.writeStr(fmt.Sprintf("0 %d\n", totalObjects+1))
	pw.writeStr("0000000000 65535 f \n")
	for _, off := range xrefOffsets {
		fmt.Fprintf(pw.w, "%010d 00000 n \n", off)
		pw.offset += 20
	}
	pw.writeStr("trailer\n")
	pw.writeStr(fmt.Sprintf("<< /Size %d /Root 1 0 R >>\n", totalObjects+1))
	pw.writeStr("startxref\n")
	pw.writeStr(fmt.Sprintf("%d\n", xrefStart))
	pw.writeStr("%%EOF\n")
}

// writePages writes pages as one PDF. Page i must have been built with
// the object IDs its position in the file assigns it.
func writePages(outputPath string, pages []proofPage, totalObjects int) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()

	pw := &pdfWriter{w: bufio.NewWriter(outFile)}
	xrefOffsets := make([]uint64, totalObjects)

	pw.writeHeader()

	xrefOffsets[0] = pw.offset
	pw.write([]byte("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"))

	xrefOffsets[1] = pw.offset
	var pageRefs strings.Builder
	for i, pg := range pages {
		if i > 0 {
			pageRefs.WriteByte(' ')
		}
		fmt.Fprintf(&pageRefs, "%d 0 R", pg.objects[0].id)
	}
	pw.writeStr(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [ %s ] /Count %d >>\nendobj\n", pageRefs.String(), len(pages)))

	for _, pg := range pages {
		for _, obj := range pg.objects {
			xrefOffsets[obj.id-1] = pw.offset
			pw.write(obj.data)
		}
	}

	pw.writeXrefTrailer(xrefOffsets, totalObjects)
	return pw.w.Flush()
}

// writeProof renders every page of the document rooted at doc into a PDF
// and checks the result by reading its page dimensions back.
func writeProof(outputPath string, doc *figure.Compound, pal *palette.Manager) error {
	pb := newProofBuilder(pal)
	var pages []proofPage
	nextObjID := 3
	for page := range doc.Chain() {
		pg, n := pb.buildPage(page, nextObjID)
		pages = append(pages, pg)
		nextObjID += n
	}
	if len(pages) == 0 {
		return fmt.Errorf("document has no pages")
	}
	if err := writePages(outputPath, pages, nextObjID-1); err != nil {
		return err
	}

	dims, err := api.PageDimsFile(outputPath)
	if err != nil {
		return fmt.Errorf("verifying proof %s: %w", outputPath, err)
	}
	if len(dims) != len(pages) {
		return fmt.Errorf("proof %s has %d pages, want %d", outputPath, len(dims), len(pages))
	}
	return nil
}
