package main

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config holds tool settings. Values come from .lcviz.yaml, LCVIZ_* env
// vars and command-line flags, in increasing priority.
type Config struct {
	OutputDir        string `mapstructure:"output_dir"`
	PlotWidthPx      int    `mapstructure:"plot_width_px"`
	PlotHeightPx     int    `mapstructure:"plot_height_px"`
	WindowSizePixels int    `mapstructure:"window_size_pixels"`
	Verbose          bool   `mapstructure:"verbose"`
	DefaultEphemeris string `mapstructure:"default_ephemeris"`
}

// Load reads configuration from viper, applying built-in defaults for any
// values not set by config file, environment, or flags.
func Load() (Config, error) {
	viper.SetDefault("output_dir", ".")
	viper.SetDefault("plot_width_px", 1200)
	viper.SetDefault("plot_height_px", 500)
	viper.SetDefault("window_size_pixels", 800)
	viper.SetDefault("verbose", false)
	viper.SetDefault("default_ephemeris", "default")

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if cfg.PlotWidthPx < 100 || cfg.PlotHeightPx < 100 {
		return Config{}, fmt.Errorf("config: plot size %dx%d is too small (minimum 100x100)", cfg.PlotWidthPx, cfg.PlotHeightPx)
	}
	return cfg, nil
}
