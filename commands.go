package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
	"github.com/bob-anderson-ok/lcviz/lightcurve"
)

var foldCmd = &cobra.Command{
	Use:   "fold <parameter-file>",
	Short: "Fold every dataset and write the viewers and phase columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		dir := r.cfg.OutputDir
		if _, err := r.saveViewers(dir); err != nil {
			return err
		}
		for _, d := range r.s.Data().All() {
			filename := filepath.Join(dir, fileNameFor(d.Label, ".phases.json"))
			if err := lightcurve.WriteColumnsJSON(filename, d); err != nil {
				return exitWith(2, err)
			}
			fmt.Fprintf(r.out, "Wrote %s\n", filename)
		}
		return nil
	},
}

var binCmd = &cobra.Command{
	Use:   "bin <parameter-file>",
	Short: "Bin one dataset in time or phase",
	Long: `bin averages a dataset into equal-width bins. The dataset, bin count and
ephemeris come from the parameter file's "binning" block; flags override it.
With an ephemeris the bins are in phase, otherwise in time.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		spec := BinningSpec{}
		if r.params.Binning != nil {
			spec = *r.params.Binning
		}
		if cmd.Flags().Changed("dataset") {
			spec.Dataset, _ = cmd.Flags().GetString("dataset")
		}
		if cmd.Flags().Changed("n-bins") {
			spec.NBins, _ = cmd.Flags().GetInt("n-bins")
		}
		if cmd.Flags().Changed("ephemeris") {
			spec.Ephemeris, _ = cmd.Flags().GetString("ephemeris")
		}
		if spec.Dataset == "" {
			spec.Dataset = r.firstDatasetLabel()
		}
		if spec.NBins == 0 {
			return exitWith(4, fmt.Errorf("binning.n_bins: not found"))
		}

		out, err := r.s.Bin(spec.Dataset, spec.Ephemeris, spec.NBins, true)
		if err != nil {
			return exitWith(4, err)
		}
		fmt.Printf("%s: %d non-empty bins\n", out.Label, out.Len())

		dir := r.cfg.OutputDir
		if _, err := r.saveViewers(dir); err != nil {
			return err
		}
		filename := filepath.Join(dir, fileNameFor(out.Label, ".json"))
		if err := lightcurve.WriteColumnsJSON(filename, out); err != nil {
			return exitWith(2, err)
		}
		fmt.Fprintf(r.out, "Wrote %s\n", filename)
		return nil
	},
}

var exportEphemeridesCmd = &cobra.Command{
	Use:   "export-ephemerides <parameter-file> [output.toml]",
	Short: "Write the session's ephemerides as TOML",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		data, err := ephemeris.MarshalTOML(r.s.Ephemerides().Entries())
		if err != nil {
			return err
		}
		filename := filepath.Join(r.cfg.OutputDir, "ephemerides.toml")
		if len(args) == 2 {
			filename = args[1]
		}
		if err := os.WriteFile(filename, data, 0o644); err != nil {
			return exitWith(2, err)
		}
		fmt.Printf("Wrote %d ephemerides to %s\n", r.s.Ephemerides().Len(), filename)
		return nil
	},
}

// firstDatasetLabel is the label of the first dataset loaded.
func (r *run) firstDatasetLabel() string {
	labels := r.s.Data().Labels()
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

func init() {
	binCmd.Flags().String("dataset", "", "label of the dataset to bin")
	binCmd.Flags().Int("n-bins", 0, "number of bins")
	binCmd.Flags().String("ephemeris", "", "bin in phase of this ephemeris")

	rootCmd.AddCommand(foldCmd)
	rootCmd.AddCommand(binCmd)
	rootCmd.AddCommand(exportEphemeridesCmd)
}
