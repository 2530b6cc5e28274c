package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
	"github.com/bob-anderson-ok/lcviz/periodogram"
)

var periodogramCmd = &cobra.Command{
	Use:   "periodogram <parameter-file>",
	Short: "Search a dataset for its period",
	Long: `periodogram computes a Lomb-Scargle periodogram of one dataset and reports
the period of the strongest peak. With --adopt the period is written into an
ephemeris (created if needed) and the viewers are re-rendered.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		spec := PeriodogramSpec{}
		if r.params.Periodogram != nil {
			spec = *r.params.Periodogram
		}
		if cmd.Flags().Changed("dataset") {
			spec.Dataset, _ = cmd.Flags().GetString("dataset")
		}
		if spec.Dataset == "" {
			spec.Dataset = r.firstDatasetLabel()
		}
		d, ok := r.s.Data().Get(spec.Dataset)
		if !ok {
			return exitWith(4, fmt.Errorf("periodogram.dataset: %q not found", spec.Dataset))
		}

		pg, err := periodogram.FromDataset(d, periodogram.Options{
			MinFrequency: spec.MinFrequency,
			MaxFrequency: spec.MaxFrequency,
			N:            spec.NFrequencies,
		})
		if err != nil {
			return exitWith(4, fmt.Errorf("periodogram of %q: %w", d.Label, err))
		}
		best, power := pg.BestPeriod()
		fmt.Printf("%s: best period %0.8f (power %0.4f, %d frequencies)\n", d.Label, best, power, len(pg.Frequency))

		img, err := makePeriodogramImage(d.Label, pg, float64(r.cfg.PlotWidthPx), float64(r.cfg.PlotHeightPx))
		if err != nil {
			return err
		}
		filename := filepath.Join(r.cfg.OutputDir, fileNameFor(d.Label, ".periodogram.png"))
		if err := lightcurve.SaveImageToFile(filename, img); err != nil {
			return exitWith(2, err)
		}
		fmt.Fprintf(r.out, "Wrote %s\n", filename)

		adopt, _ := cmd.Flags().GetString("adopt")
		if adopt == "" {
			return nil
		}
		if err := adoptPeriod(r, adopt, best); err != nil {
			return exitWith(4, err)
		}
		_, err = r.saveViewers(r.cfg.OutputDir)
		return err
	},
}

// adoptPeriod writes period into the named ephemeris, adding it with default
// parameters first when it does not exist, and opens its phase viewer.
func adoptPeriod(r *run, name string, period float64) error {
	if _, exists := r.s.Ephemerides().Get(name); !exists {
		p := ephemeris.DefaultParams()
		p.Period = period
		if _, err := r.s.AddComponent(name, p); err != nil && fatalEphemerisError(err) {
			return err
		}
	} else if _, err := r.s.UpdateEphemeris(name, ephemeris.Fields{Period: ephemeris.Float(period)}); err != nil && fatalEphemerisError(err) {
		return err
	}
	_, err := r.s.CreatePhaseViewer(name)
	return err
}

func init() {
	periodogramCmd.Flags().String("dataset", "", "label of the dataset to search")
	periodogramCmd.Flags().String("adopt", "", "write the best period into this ephemeris")
	rootCmd.AddCommand(periodogramCmd)
}
