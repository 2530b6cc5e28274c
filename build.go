package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
	"github.com/bob-anderson-ok/lcviz/session"
)

// run bundles what every command needs: settings, the parsed parameter
// file and the session built from it.
type run struct {
	cfg       Config
	paramFile string
	params    SessionParams
	s         *session.Session
	out       io.Writer // progress messages; io.Discard unless verbose
}

// newRun reads the parameter file and builds its session.
func newRun(paramFile string) (*run, error) {
	cfg, err := Load()
	if err != nil {
		return nil, exitWith(4, err)
	}
	params, data, err := readParameterFile(paramFile)
	if err != nil {
		return nil, err
	}
	r := &run{cfg: cfg, paramFile: paramFile, params: params, out: io.Discard}
	if cfg.Verbose {
		r.out = os.Stdout
	}
	if params.ShowInput {
		fmt.Println(string(data))
	}

	r.s, err = session.New(session.Options{
		Logger:             os.Stderr,
		SurfaceFactory:     session.NewPlotSurfaceFactory(float64(cfg.PlotWidthPx), float64(cfg.PlotHeightPx)),
		DefaultEphemeris:   cfg.DefaultEphemeris,
		ManualPhaseViewers: true,
	})
	if err != nil {
		return nil, err
	}
	if err := r.load(); err != nil {
		_ = r.s.Close()
		return nil, err
	}
	return r, nil
}

func (r *run) close() {
	if err := r.s.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing session: %v\n", err)
	}
}

func (r *run) load() error {
	dir := filepath.Dir(r.paramFile)
	for i, spec := range r.params.Datasets {
		d, err := loadDataset(dir, i, spec)
		if err != nil {
			return exitWith(4, err)
		}
		if err := r.s.LoadData(d); err != nil {
			return exitWith(4, err)
		}
		fmt.Fprintf(r.out, "Loaded %q: %d samples\n", d.Label, d.Len())
	}

	if err := applyEphemerides(r.s, nil, r.params.Ephemerides, r.out); err != nil {
		return exitWith(4, err)
	}
	if file := ephemeridesFlag(); file != "" {
		named, err := readEphemeridesFile(file)
		if err != nil {
			return err
		}
		if err := applyEphemerides(r.s, nil, named, r.out); err != nil {
			return exitWith(4, err)
		}
	}
	return r.openPhaseViewers()
}

// openPhaseViewers opens the listed phase viewers, or one per ephemeris
// when none are listed.
func (r *run) openPhaseViewers() error {
	names := r.params.PhaseViewers
	if len(names) == 0 {
		names = r.s.Ephemerides().Names()
	}
	for _, name := range names {
		v, err := r.s.CreatePhaseViewer(name)
		if err != nil {
			return exitWith(4, fmt.Errorf("phase_viewers: %w", err))
		}
		fmt.Fprintf(r.out, "Opened viewer %s\n", v.Reference)
	}
	return nil
}

func loadDataset(dir string, i int, spec DatasetSpec) (*lightcurve.Dataset, error) {
	if spec.Path == "" {
		d, err := lightcurve.FromTable(spec.Inline, spec.Label)
		if err != nil {
			return nil, fmt.Errorf("datasets[%d]: %w", i, err)
		}
		return d, nil
	}
	path := spec.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(dir, path)
	}
	d, err := lightcurve.LoadJSON5(path)
	if err != nil {
		return nil, fmt.Errorf("datasets[%d]: %w", i, err)
	}
	if spec.Label != "" {
		d.Label = spec.Label
	}
	return d, nil
}

func ephemeridesFlag() string {
	file, _ := rootCmd.PersistentFlags().GetString("ephemerides")
	return file
}

func readEphemeridesFile(file string) ([]ephemeris.Named, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, exitWith(2, fmt.Errorf("\n\tAttempt to read ephemerides file %q failed: %w\n", file, err))
	}
	named, err := ephemeris.UnmarshalTOML(data)
	if err != nil {
		return nil, exitWith(3, fmt.Errorf("\n\tFormat error in file %q: %w\n", file, err))
	}
	return named, nil
}

// applyEphemerides brings the session's registry from prev to next: entries
// in next are updated or added, entries only in prev are removed. Entries
// the session had before prev are left alone.
func applyEphemerides(s *session.Session, prev, next []ephemeris.Named, out io.Writer) error {
	keep := make(map[string]bool, len(next))
	for _, n := range next {
		keep[n.Name] = true
		var err error
		if _, exists := s.Ephemerides().Get(n.Name); exists {
			_, err = s.UpdateEphemeris(n.Name, ephemeris.Fields{
				T0:     ephemeris.Float(n.T0),
				Period: ephemeris.Float(n.Period),
				Dpdt:   ephemeris.Float(n.Dpdt),
				WrapAt: ephemeris.Float(n.WrapAt),
			})
		} else {
			_, err = s.AddComponent(n.Name, n.Params)
		}
		if err != nil {
			if fatalEphemerisError(err) {
				return fmt.Errorf("ephemerides.%s: %w", n.Name, err)
			}
			// The parameters were applied; some datasets could not follow.
			fmt.Fprintf(os.Stderr, "warning: ephemerides.%s: %v\n", n.Name, err)
		}
		fmt.Fprintf(out, "Ephemeris %s: t0=%g period=%g dpdt=%g wrap_at=%g\n",
			n.Name, n.T0, n.Period, n.Dpdt, n.WrapAt)
	}
	for _, p := range prev {
		if keep[p.Name] {
			continue
		}
		if err := s.RemoveComponent(p.Name); err != nil && !errors.Is(err, ephemeris.ErrUnknownEphemeris) {
			return fmt.Errorf("ephemerides.%s: %w", p.Name, err)
		}
		fmt.Fprintf(out, "Ephemeris %s removed\n", p.Name)
	}
	return nil
}

func fatalEphemerisError(err error) bool {
	return errors.Is(err, ephemeris.ErrInvalidParameter) ||
		errors.Is(err, ephemeris.ErrInvalidName) ||
		errors.Is(err, ephemeris.ErrUnknownEphemeris)
}

var fileNameReplacer = strings.NewReplacer(":", "_", "[", "_", "]", "", "/", "_", " ", "_")

// fileNameFor turns a viewer reference or dataset label into a file name.
func fileNameFor(name, ext string) string {
	return fileNameReplacer.Replace(name) + ext
}

// saveViewers renders every viewer and writes each image as a PNG in dir.
func (r *run) saveViewers(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, exitWith(2, err)
	}
	if err := r.s.RenderAll(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}
	var written []string
	for _, v := range r.s.Viewers().All() {
		ps, ok := v.Surface().(*session.PlotSurface)
		if !ok || ps.Image() == nil {
			continue
		}
		filename := filepath.Join(dir, fileNameFor(v.Reference, ".png"))
		if err := lightcurve.SaveImageToFile(filename, ps.Image()); err != nil {
			return written, err
		}
		written = append(written, filename)
		fmt.Fprintf(r.out, "Wrote %s\n", filename)
	}
	return written, nil
}
