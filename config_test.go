package main

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.OutputDir != "." {
		t.Errorf("OutputDir = %q, want %q", cfg.OutputDir, ".")
	}
	if cfg.PlotWidthPx != 1200 || cfg.PlotHeightPx != 500 {
		t.Errorf("plot size = %dx%d, want 1200x500", cfg.PlotWidthPx, cfg.PlotHeightPx)
	}
	if cfg.DefaultEphemeris != "default" {
		t.Errorf("DefaultEphemeris = %q, want %q", cfg.DefaultEphemeris, "default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("LCVIZ_PLOT_WIDTH_PX", "640")
	t.Setenv("LCVIZ_DEFAULT_EPHEMERIS", "orbit")
	viper.SetEnvPrefix("LCVIZ")
	viper.AutomaticEnv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PlotWidthPx != 640 {
		t.Errorf("PlotWidthPx = %d, want 640", cfg.PlotWidthPx)
	}
	if cfg.DefaultEphemeris != "orbit" {
		t.Errorf("DefaultEphemeris = %q, want %q", cfg.DefaultEphemeris, "orbit")
	}
}

func TestLoadRejectsTinyPlots(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("plot_height_px", 20)

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a 20 pixel high plot")
	}
}
