package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// !!!!! This MUST match the app name given in the run configuration !!!!!
const version = "0_3_0"

var rootCmd = &cobra.Command{
	Use:   "lcviz <command> <parameter-file>",
	Short: "Light curve phase folding and viewer tool",
	Long: `lcviz loads light curves named in a JSON5 parameter file, folds them with
one or more ephemerides and renders flux-vs-time and flux-vs-phase viewers.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// exitError carries the process exit code for a failure class.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func exitWith(code int, err error) error {
	return &exitError{code: code, err: err}
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .lcviz.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringP("output-dir", "o", "", "directory for rendered viewers and data products")
	rootCmd.PersistentFlags().String("ephemerides", "", "TOML file of ephemerides to add to the session")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".lcviz")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("LCVIZ")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

func main() {
	Execute()
}
