package main

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/alefaraci/figcolor/palette"
	"github.com/alefaraci/figcolor/quant"
	"github.com/alefaraci/figcolor/remap"
	"github.com/alefaraci/figcolor/trace"
)

type DisplayConfig struct {
	Colors        int  `toml:"colors"`         // shared colormap cells
	PrivateColors int  `toml:"private_colors"` // 0 = no private colormap
	Monochrome    bool `toml:"monochrome"`
}

type PaletteConfig struct {
	UserColors []string `toml:"user_colors"`
}

// Colors parses the configured user colors.
func (p PaletteConfig) Colors() ([]color.RGBA, error) {
	out := make([]color.RGBA, 0, len(p.UserColors))
	for _, s := range p.UserColors {
		c, err := palette.ParseHex(s)
		if err != nil {
			return nil, fmt.Errorf("palette.user_colors: %w", err)
		}
		out = append(out, c)
	}
	return out, nil
}

type DitherConfig struct {
	Seed uint64 `toml:"seed"`
}

type WatchConfig struct {
	Dirs         []string `toml:"dirs"`
	Output       string   `toml:"output"`        // proof PDF rewritten after every run
	PollInterval int      `toml:"poll_interval"` // seconds, 0 = default (5s)
}

func (w WatchConfig) PollDuration() time.Duration {
	if w.PollInterval > 0 {
		return time.Duration(w.PollInterval) * time.Second
	}
	return 5 * time.Second
}

type Config struct {
	Display  DisplayConfig `toml:"display"`
	Palette  PaletteConfig `toml:"palette"`
	Remap    remap.Config  `toml:"remap"`
	Quantize quant.Config  `toml:"quantize"`
	Dither   DitherConfig  `toml:"dither"`
	Trace    trace.Options `toml:"trace"`
	Watch    WatchConfig   `toml:"watch"`
}

func defaultConfig() *Config {
	rc := remap.DefaultConfig()
	rc.MonochromeFallback = true
	return &Config{
		Display: DisplayConfig{
			Colors:        256,
			PrivateColors: 256,
		},
		Remap:    rc,
		Quantize: quant.DefaultConfig(),
		Dither:   DitherConfig{Seed: 1},
		Trace:    trace.DefaultOptions(),
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	_, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Display.Colors < 0 || c.Display.PrivateColors < 0 {
		return errors.New("display color counts must not be negative")
	}
	if c.Remap.MaxImageColors < 2 || c.Remap.MaxImageColors > 256 {
		return fmt.Errorf("remap.max_image_colors %d out of range 2..256", c.Remap.MaxImageColors)
	}
	if _, err := c.Palette.Colors(); err != nil {
		return err
	}
	return nil
}
