package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/logger"
	"github.com/alefaraci/figcolor/palette"
)

const stampDesc = "pos:c, scale:1 rel, rotation:0"

// stampProof overlays page i of the document onto page i+1 of basePDF and
// writes the result to outputPath. Document pages beyond the end of
// basePDF are dropped.
func stampProof(ctx context.Context, basePDF, outputPath string, doc *figure.Compound, pal *palette.Manager) error {
	dims, err := api.PageDimsFile(basePDF)
	if err != nil {
		return fmt.Errorf("reading PDF page dims: %w", err)
	}
	if len(dims) == 0 {
		return fmt.Errorf("no pages found in %s", basePDF)
	}

	tmpDir, err := os.MkdirTemp("", "figcolor-stamp-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	pb := newProofBuilder(pal)
	src := basePDF
	n := 0
	for page := range doc.Chain() {
		if n == len(dims) {
			logger.L(ctx).Warn("document has more pages than the stamped PDF",
				zap.String("pdf", basePDF), zap.Int("pages", len(dims)))
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		pg, objs := pb.buildPage(page, 3)
		overlayPath := filepath.Join(tmpDir, fmt.Sprintf("overlay_%d.pdf", n))
		if err := writePages(overlayPath, []proofPage{pg}, 2+objs); err != nil {
			return fmt.Errorf("writing overlay for page %d: %w", n+1, err)
		}
		if err := api.AddPDFWatermarksFile(
			src, outputPath, []string{strconv.Itoa(n + 1)}, true,
			overlayPath, stampDesc, nil,
		); err != nil {
			return fmt.Errorf("stamping page %d: %w", n+1, err)
		}
		src = outputPath
		n++
	}
	return nil
}
