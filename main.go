package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/alefaraci/figcolor/figure"
	"github.com/alefaraci/figcolor/logger"
	"github.com/alefaraci/figcolor/palette"
	"github.com/alefaraci/figcolor/quant"
	"github.com/alefaraci/figcolor/remap"
	"github.com/alefaraci/figcolor/trace"
)

func main() {
	var input, output, configPath, stamp string
	var watch, vectorize, verbose bool

	flag.StringVar(&input, "i", "", "Input raster file or directory")
	flag.StringVar(&input, "input", "", "Input raster file or directory")
	flag.StringVar(&output, "o", "", "Output proof file (.pdf)")
	flag.StringVar(&output, "output", "", "Output proof file (.pdf)")
	flag.StringVar(&stamp, "stamp", "", "Overlay the proof onto the pages of this PDF")
	flag.StringVar(&configPath, "config", "config.toml", "Path to config file (TOML)")
	flag.BoolVar(&watch, "watch", false, "Run as daemon, watching directories from config [watch] section")
	flag.BoolVar(&vectorize, "trace", false, "Replace every picture with traced polygons")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	var err error
	var l *zap.Logger
	if verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	zap.ReplaceGlobals(l)
	defer l.Sync() //nolint:errcheck

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.NewContext(ctx, l)

	a, err := newApp(cfg, l)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer a.close()
	a.stamp = stamp
	a.vectorize = vectorize

	if watch {
		if len(cfg.Watch.Dirs) == 0 {
			fmt.Fprintln(os.Stderr, "Error: [watch] dirs must list at least one directory for --watch mode")
			os.Exit(1)
		}
		if cfg.Watch.Output == "" {
			fmt.Fprintln(os.Stderr, "Error: [watch] output must be set in config for --watch mode")
			os.Exit(1)
		}
		if err := runWatchMode(ctx, a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if input == "" {
		fmt.Fprintln(os.Stderr, "Usage: figcolor -i <input> [-o proof.pdf] [--stamp base.pdf] [--trace] [--config config.toml]")
		fmt.Fprintln(os.Stderr, "       figcolor --watch [--config config.toml]")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if output != "" && !strings.HasSuffix(output, ".pdf") {
		fmt.Fprintf(os.Stderr, "Error: output file '%s' must have a .pdf extension\n", output)
		os.Exit(1)
	}
	if stamp != "" && output == "" {
		fmt.Fprintln(os.Stderr, "Error: --stamp needs an output file")
		os.Exit(1)
	}

	start := time.Now()
	res, err := a.process(ctx, input, output)
	if res != nil {
		printResult(res)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if output != "" && res != nil && !res.Canceled {
		fmt.Printf("Successfully wrote '%s' in %.2fs\n", output, time.Since(start).Seconds())
	}
}

// app holds the long-lived color state shared by every run: one display
// colormap and the single remap engine allowed to write to it.
type app struct {
	cfg   *Config
	pal   *palette.Manager
	remap *remap.Engine
	imp   *importer

	stamp     string
	vectorize bool
}

func newApp(cfg *Config, l *zap.Logger) (*app, error) {
	screen := palette.NewScreen(cfg.Display.Colors, cfg.Display.PrivateColors)
	screen.Mono = cfg.Display.Monochrome

	pal, err := palette.NewManager(screen, l)
	if err != nil {
		return nil, fmt.Errorf("allocating standard colors: %w", err)
	}

	userColors, err := cfg.Palette.Colors()
	if err != nil {
		pal.Close()
		return nil, err
	}
	for _, c := range userColors {
		if _, err := pal.AddUserColor(c); err != nil {
			pal.Close()
			return nil, fmt.Errorf("adding user color %v: %w", c, err)
		}
	}

	rc := cfg.Remap
	rc.Seed = cfg.Dither.Seed
	return &app{
		cfg:   cfg,
		pal:   pal,
		remap: remap.New(pal, quant.NewNeuQuant(cfg.Quantize), rc),
		imp: &importer{
			quant:      cfg.Quantize,
			monochrome: cfg.Display.Monochrome,
			seed:       cfg.Dither.Seed,
		},
	}, nil
}

func (a *app) close() {
	a.pal.Close()
}

// process imports input, remaps its pictures onto the display colormap and
// writes the proof when output is set. A canceled run writes nothing.
func (a *app) process(ctx context.Context, input, output string) (*remap.Result, error) {
	doc, err := a.imp.importPath(ctx, input)
	if err != nil {
		return nil, err
	}
	return a.render(ctx, doc, output)
}

// render runs remap over doc and writes the proof.
func (a *app) render(ctx context.Context, doc *figure.Compound, output string) (*remap.Result, error) {
	a.pal.MarkUsed(doc)

	res, err := a.remap.Run(ctx, doc)
	if res == nil {
		return nil, err
	}
	if err != nil {
		logger.L(ctx).Warn("some pictures were skipped", zap.Error(err))
	}
	if res.Canceled || output == "" {
		return res, nil
	}

	if a.vectorize {
		if err := traceDocument(doc, a.cfg.Trace); err != nil {
			return res, err
		}
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return res, err
		}
	}
	if a.stamp != "" {
		return res, stampProof(ctx, a.stamp, output, doc, a.pal)
	}
	return res, writeProof(output, doc, a.pal)
}

// traceDocument replaces every picture box on each page with a compound of
// traced polygons. Pictures that cannot be traced stay in place.
func traceDocument(doc *figure.Compound, opts trace.Options) error {
	var errs error
	for page := range doc.Chain() {
		var boxes []*figure.Line
		for _, l := range page.Lines {
			if l.Pic != nil && !l.Pic.Empty() {
				boxes = append(boxes, l)
			}
		}
		for _, l := range boxes {
			c, err := trace.Picture(l, opts)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("tracing %s: %w", l.Pic.File, err))
				continue
			}
			page.Remove(l)
			if !c.Empty() {
				page.AddCompound(c)
			}
		}
		page.ComputeBounds()
	}
	return errs
}

func printResult(res *remap.Result) {
	if res.Canceled {
		fmt.Println("Remap canceled; document left unchanged.")
		return
	}
	fmt.Printf("Remapped %d pictures (%s): %d colors onto %d slots",
		res.Pictures, res.Strategy, res.Total, res.Granted)
	if res.Skipped > 0 {
		fmt.Printf(", %d skipped", res.Skipped)
	}
	fmt.Println()
}
