package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/session"
)

// writeParams writes a parameter file with one inline sinusoid and one
// file-based dataset, then the given extra top-level fields.
func writeParams(t *testing.T, dir, extra string) string {
	t.Helper()
	var times, flux []string
	for i := 0; i < 60; i++ {
		tm := 0.05 * float64(i)
		times = append(times, fmt.Sprintf("%g", tm))
		flux = append(flux, fmt.Sprintf("%g", 1+0.1*math.Sin(2*math.Pi*tm/0.7)))
	}
	pairs := "[[0, 1], [0.5, 0.9], [1, 1.1], [1.5, 1]]"
	if err := os.WriteFile(filepath.Join(dir, "pairs.json5"), []byte(pairs), 0o644); err != nil {
		t.Fatal(err)
	}

	text := fmt.Sprintf(`{
		datasets: [
			{label: "sine", time: [%s], flux: [%s]},
			{path: "pairs.json5"},
		],
		%s
	}`, strings.Join(times, ", "), strings.Join(flux, ", "), extra)
	path := filepath.Join(dir, "session.json5")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestRun(t *testing.T, extra string) *run {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	viper.Set("output_dir", filepath.Join(dir, "out"))
	viper.Set("plot_width_px", 300)
	viper.Set("plot_height_px", 200)

	r, err := newRun(writeParams(t, dir, extra))
	if err != nil {
		t.Fatalf("newRun: %v", err)
	}
	t.Cleanup(r.close)
	return r
}

func TestNewRunBuildsSession(t *testing.T) {
	r := newTestRun(t, `ephemerides: {"default": {period: 0.7}, second: {period: 1.4, wrap_at: 0.5}}`)

	if got := r.s.Data().Labels(); len(got) != 2 || got[0] != "sine" || got[1] != "pairs" {
		t.Fatalf("labels = %v", got)
	}
	e, ok := r.s.Ephemerides().Get("default")
	if !ok || e.Period != 0.7 {
		t.Fatalf("default = %+v, %v", e, ok)
	}
	col, err := r.s.PhaseColumn("pairs", "second")
	if err != nil {
		t.Fatalf("PhaseColumn: %v", err)
	}
	// t=1 with period 1.4 is phase 0.714..., wrapped into [-0.5, 0.5).
	if math.Abs(col[2]-(1/1.4-1)) > 1e-12 {
		t.Errorf("phase = %v, want %v", col[2], 1/1.4-1)
	}

	// Without phase_viewers, one viewer per ephemeris is opened.
	want := []string{
		session.TimeReference,
		session.PhaseReference("default", 0),
		session.PhaseReference("second", 0),
	}
	refs := r.s.Viewers().References()
	if strings.Join(refs, ",") != strings.Join(want, ",") {
		t.Errorf("viewers = %v, want %v", refs, want)
	}
}

func TestNewRunListedViewersOnly(t *testing.T) {
	r := newTestRun(t, `ephemerides: {a: {period: 2}, b: {period: 3}}, phase_viewers: ["b"]`)

	refs := r.s.Viewers().References()
	want := []string{session.TimeReference, session.PhaseReference("b", 0)}
	if strings.Join(refs, ",") != strings.Join(want, ",") {
		t.Errorf("viewers = %v, want %v", refs, want)
	}
}

func TestNewRunUnknownViewer(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	dir := t.TempDir()
	_, err := newRun(writeParams(t, dir, `phase_viewers: ["nope"]`))
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 4 {
		t.Fatalf("err = %v, want exit code 4", err)
	}
	if !errors.Is(err, ephemeris.ErrUnknownEphemeris) {
		t.Errorf("err = %v, want ErrUnknownEphemeris", err)
	}
}

func TestApplyEphemerides(t *testing.T) {
	s, err := session.New(session.Options{ManualPhaseViewers: true})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	prev := []ephemeris.Named{
		{Name: "a", Params: ephemeris.Params{T0: 0, Period: 2, WrapAt: 1}},
		{Name: "b", Params: ephemeris.Params{T0: 0, Period: 3, WrapAt: 1}},
	}
	if err := applyEphemerides(s, nil, prev, io.Discard); err != nil {
		t.Fatalf("apply: %v", err)
	}
	next := []ephemeris.Named{
		{Name: "a", Params: ephemeris.Params{T0: 1, Period: 2.5, WrapAt: 0.5}},
		{Name: "c", Params: ephemeris.Params{T0: 0, Period: 4, WrapAt: 1}},
	}
	if err := applyEphemerides(s, prev, next, io.Discard); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got := strings.Join(s.Ephemerides().Names(), ",")
	if got != "default,a,c" {
		t.Errorf("names = %s, want default,a,c", got)
	}
	a, _ := s.Ephemerides().Get("a")
	if a.T0 != 1 || a.Period != 2.5 || a.WrapAt != 0.5 {
		t.Errorf("a = %+v", a)
	}

	bad := []ephemeris.Named{{Name: "a", Params: ephemeris.Params{Period: -1, WrapAt: 1}}}
	if err := applyEphemerides(s, next, bad, io.Discard); !errors.Is(err, ephemeris.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestFileNameFor(t *testing.T) {
	tests := []struct {
		in, ext, want string
	}{
		{session.TimeReference, ".png", "flux-vs-time.png"},
		{session.PhaseReference("default", 0), ".png", "flux-vs-phase_default.png"},
		{session.PhaseReference("default", 2), ".png", "flux-vs-phase_default_2.png"},
		{"KIC 1234 (binned)", ".json", "KIC_1234_(binned).json"},
	}
	for _, tt := range tests {
		if got := fileNameFor(tt.in, tt.ext); got != tt.want {
			t.Errorf("fileNameFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveViewers(t *testing.T) {
	r := newTestRun(t, `ephemerides: {"default": {period: 0.7}}`)

	written, err := r.saveViewers(r.cfg.OutputDir)
	if err != nil {
		t.Fatalf("saveViewers: %v", err)
	}
	if len(written) != 2 {
		t.Fatalf("wrote %v, want the time and the phase viewer", written)
	}
	for _, f := range written {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("stat %s: %v", f, err)
		}
	}
}

func TestReloadParameters(t *testing.T) {
	r := newTestRun(t, `ephemerides: {"default": {period: 0.7}, old: {period: 5}}`)

	text, err := os.ReadFile(r.paramFile)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(text),
		`ephemerides: {"default": {period: 0.7}, old: {period: 5}}`,
		`ephemerides: {"default": {period: 0.35}, fresh: {period: 9}}`, 1)
	if err := os.WriteFile(r.paramFile, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := r.reloadParameters(); err != nil {
		t.Fatalf("reloadParameters: %v", err)
	}
	if got := strings.Join(r.s.Ephemerides().Names(), ","); got != "default,fresh" {
		t.Errorf("names = %s, want default,fresh", got)
	}
	e, _ := r.s.Ephemerides().Get("default")
	if e.Period != 0.35 {
		t.Errorf("period = %v, want 0.35", e.Period)
	}
	if _, err := r.s.Viewer(session.PhaseReference("old", 0)); !errors.Is(err, session.ErrUnknownViewer) {
		t.Errorf("viewer of removed ephemeris still present: %v", err)
	}
	if _, err := r.s.Viewer(session.PhaseReference("fresh", 0)); err != nil {
		t.Errorf("viewer of new ephemeris: %v", err)
	}
}
