package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/KevinWang15/go-json5"
)

func parseParams(t *testing.T, text string) (SessionParams, string, bool) {
	t.Helper()
	var jsonTable map[string]interface{}
	if err := json.Unmarshal([]byte(text), &jsonTable); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	var params SessionParams
	msg, ok := validateJsonFileAndFillParams(jsonTable, &params)
	return params, msg, ok
}

func TestValidateJsonFileAndFillParams(t *testing.T) {
	params, msg, ok := parseParams(t, `{
		// comments are allowed
		title: "V1234 Cyg",
		window_size_pixels: 900,
		datasets: [
			{path: "v1234.json5"},
			{label: "inline", time: [1, 2, 3], flux: [1, 0.9, 1]},
		],
		ephemerides: {
			secondary: {period: 3.2},
			"default": {t0: 2459000.5, period: 1.7, wrap_at: 0.5},
		},
		phase_viewers: ["default"],
		binning: {n_bins: 40, ephemeris: "default"},
		periodogram: {dataset: "inline", min_frequency: 0.1},
	}`)
	if !ok {
		t.Fatalf("validation failed: %s", msg)
	}
	if params.Title != "V1234 Cyg" || params.WindowSizePixels != 900 {
		t.Errorf("title/window = %q/%d", params.Title, params.WindowSizePixels)
	}
	if len(params.Datasets) != 2 || params.Datasets[0].Path != "v1234.json5" || params.Datasets[1].Inline == nil {
		t.Fatalf("datasets = %+v", params.Datasets)
	}
	if params.Datasets[1].Label != "inline" {
		t.Errorf("inline label = %q", params.Datasets[1].Label)
	}

	if len(params.Ephemerides) != 2 {
		t.Fatalf("got %d ephemerides, want 2", len(params.Ephemerides))
	}
	def, sec := params.Ephemerides[0], params.Ephemerides[1]
	if def.Name != "default" || sec.Name != "secondary" {
		t.Fatalf("ephemerides not in name order: %q, %q", def.Name, sec.Name)
	}
	if def.T0 != 2459000.5 || def.Period != 1.7 || def.Dpdt != 0 || def.WrapAt != 0.5 {
		t.Errorf("default = %+v", def)
	}
	// Missing fields take the registry defaults.
	if sec.T0 != 0 || sec.WrapAt != 1 {
		t.Errorf("secondary = %+v", sec)
	}

	if params.Binning == nil || params.Binning.NBins != 40 || params.Binning.Ephemeris != "default" {
		t.Errorf("binning = %+v", params.Binning)
	}
	if params.Periodogram == nil || params.Periodogram.Dataset != "inline" || params.Periodogram.MinFrequency != 0.1 {
		t.Errorf("periodogram = %+v", params.Periodogram)
	}
}

func TestValidateJsonFileErrors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"no datasets", `{title: "x"}`, "datasets: not found"},
		{"empty datasets", `{datasets: []}`, "datasets: is empty"},
		{"dataset without data", `{datasets: [{label: "a"}]}`, "datasets[0]: needs either path or time/flux arrays"},
		{"bad show_input", `{show_input_bool: 1, datasets: [{path: "a"}]}`, "show_input_bool: is not a bool"},
		{"bad period type", `{datasets: [{path: "a"}], ephemerides: {e: {period: "2"}}}`, "ephemerides.e.period: is not a float64"},
		{"zero period", `{datasets: [{path: "a"}], ephemerides: {e: {period: 0}}}`, "ephemerides.e:"},
		{"reserved name", `{datasets: [{path: "a"}], ephemerides: {"a:b": {}}}`, "ephemerides.a:b:"},
		{"bad viewer", `{datasets: [{path: "a"}], phase_viewers: [3]}`, "phase_viewers[0]: is not a string"},
		{"bins missing", `{datasets: [{path: "a"}], binning: {}}`, "binning.n_bins: not found"},
		{"bins too few", `{datasets: [{path: "a"}], binning: {n_bins: 0}}`, "binning.n_bins: must be at least 1"},
		{"bad frequency", `{datasets: [{path: "a"}], periodogram: {max_frequency: "high"}}`, "periodogram.max_frequency: is not a float64"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msg, ok := parseParams(t, tt.text)
			if ok {
				t.Fatal("expected validation to fail")
			}
			if !strings.HasPrefix(msg, tt.want) {
				t.Errorf("msg = %q, want prefix %q", msg, tt.want)
			}
		})
	}
}

func TestReadParameterFileExitCodes(t *testing.T) {
	dir := t.TempDir()
	badFormat := filepath.Join(dir, "bad.json5")
	if err := os.WriteFile(badFormat, []byte("{datasets: ["), 0o644); err != nil {
		t.Fatal(err)
	}
	invalid := filepath.Join(dir, "invalid.json5")
	if err := os.WriteFile(invalid, []byte("{title: 3, datasets: [{path: \"a\"}]}"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		path string
		code int
	}{
		{filepath.Join(dir, "missing.json5"), 2},
		{badFormat, 3},
		{invalid, 4},
	}
	for _, tt := range tests {
		_, _, err := readParameterFile(tt.path)
		var ee *exitError
		if !errors.As(err, &ee) {
			t.Fatalf("%s: err = %v, want an exitError", tt.path, err)
		}
		if ee.code != tt.code {
			t.Errorf("%s: exit code %d, want %d", filepath.Base(tt.path), ee.code, tt.code)
		}
	}
}
