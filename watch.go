package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bob-anderson-ok/lcviz/ephemeris"
)

var watchCmd = &cobra.Command{
	Use:   "watch <parameter-file>",
	Short: "Re-render the viewers whenever the ephemerides are edited",
	Long: `watch renders the viewers once, then follows the parameter file and the
--ephemerides file. Each save updates changed ephemerides, adds new ones,
removes deleted ones and re-renders. Datasets are loaded only at start.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRun(args[0])
		if err != nil {
			return err
		}
		defer r.close()

		tomlFile := ephemeridesFlag()
		var tomlEntries []ephemeris.Named
		files := []string{r.paramFile}
		if tomlFile != "" {
			files = append(files, tomlFile)
			if tomlEntries, err = readEphemeridesFile(tomlFile); err != nil {
				return err
			}
		}
		if _, err := r.saveViewers(r.cfg.OutputDir); err != nil {
			return err
		}

		w, err := NewWatcher(files...)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		paramAbs, _ := filepath.Abs(r.paramFile)
		fmt.Printf("Watching %v (Ctrl-C to stop)\n", files)
		for {
			select {
			case <-sigCh:
				return nil
			case file, ok := <-w.Changes:
				if !ok {
					return nil
				}
				if file == paramAbs {
					err = r.reloadParameters()
				} else {
					tomlEntries, err = r.reloadEphemerides(file, tomlEntries)
				}
				if err != nil {
					// Keep watching; the next save may fix it.
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
					continue
				}
				if _, err := r.saveViewers(r.cfg.OutputDir); err != nil {
					fmt.Fprintf(os.Stderr, "warning: %v\n", err)
				}
			}
		}
	},
}

// reloadParameters re-reads the parameter file and applies its ephemerides
// and phase viewers to the running session.
func (r *run) reloadParameters() error {
	params, _, err := readParameterFile(r.paramFile)
	if err != nil {
		return err
	}
	if err := applyEphemerides(r.s, r.params.Ephemerides, params.Ephemerides, r.out); err != nil {
		return err
	}
	r.params.Ephemerides = params.Ephemerides
	r.params.PhaseViewers = params.PhaseViewers
	r.params.Title = params.Title
	return r.openPhaseViewers()
}

// reloadEphemerides applies an edited TOML ephemerides file; prev is what the
// file held before.
func (r *run) reloadEphemerides(file string, prev []ephemeris.Named) ([]ephemeris.Named, error) {
	next, err := readEphemeridesFile(file)
	if err != nil {
		return prev, err
	}
	if err := applyEphemerides(r.s, prev, next, r.out); err != nil {
		return prev, err
	}
	return next, r.openPhaseViewers()
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
