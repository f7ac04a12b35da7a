// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/524D/rtalign/internal/align"
	"github.com/524D/rtalign/internal/config"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Program name and version, appended to software list in mzML output
const progName = "rtalign"

var progVersion = `Unknown`

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// ErrArgs means the command line arguments can't be used together
var ErrArgs = errors.New("invalid arguments")

// app holds the state shared by all commands of one invocation
type app struct {
	v         *viper.Viper
	cfgFile   string
	cfg       *config.Config
	verbosity int  // Verbosity of progress messages (infoDefault...)
	debug     bool // Dump per-sample diagnostics (RTALIGN_DEBUG=1 or --debug-samples)
	stderr    io.Writer
}

// logger returns the log used for progress messages, nil unless verbose
func (a *app) logger() *log.Logger {
	if a.verbosity != infoVerbose {
		return nil
	}
	return log.New(a.stderr, "", log.LstdFlags|log.Lshortfile)
}

// infof prints a progress message unless running silently
func (a *app) infof(format string, v ...any) {
	if a.verbosity != infoSilent {
		fmt.Fprintf(a.stderr, format, v...)
	}
}

func (a *app) newAligner() (*align.Aligner, error) {
	return align.New(a.cfg.Align.Params(), a.logger())
}

// newRootCmd builds the command tree. Each call returns an independent
// tree with its own configuration.
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   progName,
		Short: "Align retention times of LC-MS samples",
		Long: `rtalign corrects retention time drift between LC-MS samples.

Feature groups that were matched across samples serve as calibrants. For
every sample, the deviation of its retention times from the group medians
is smoothed with LOWESS, and the smoothed deviation is subtracted from the
retention times of its groups and scans.

Settings can be given as flags, in a config file (--config) or as
environment variables, e.g. RTALIGN_ALIGN_SPAN=0.3. When environment
variable RTALIGN_DEBUG=1, per-sample diagnostics are written to stderr.`,
		Version:       progVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.stderr = cmd.ErrOrStderr()
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.verbosity = infoDefault
			if cfg.Quiet {
				a.verbosity = infoSilent
			}
			if cfg.Verbose {
				a.verbosity = infoVerbose
			}
			a.debug = cfg.DebugSamples || os.Getenv("RTALIGN_DEBUG") == `1`
			return nil
		},
	}

	def := align.DefaultParams()
	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config `file` (JSON, YAML or TOML)")
	pf.BoolP("verbose", "v", false, "print progress and per-sample messages")
	pf.BoolP("quiet", "q", false, "print only errors")
	pf.Bool("debug-samples", false, "dump per-sample diagnostics to stderr")
	pf.Float64("min-fraction", def.MinFraction,
		"fraction of all samples a group must occur in to be used for calibration")
	pf.Int("extra-peaks", def.ExtraPeaks,
		"max number of extra peaks a sample may contribute to a calibration group")
	pf.Float64("span", def.Span, "LOWESS smoothing span (fraction of calibration points)")
	pf.Int("iterations", def.Iterations, "LOWESS robustifying iterations")
	pf.Float64("cutoff-quantile", def.CutoffQuantile,
		"quantile of the absolute deviations used for the outlier cutoff")
	pf.Float64("cutoff-factor", def.CutoffFactor, "multiplier of the outlier cutoff quantile")
	pf.Int("workers", def.Workers, "number of samples aligned concurrently")

	bindFlags(a.v, pf, map[string]string{
		"verbose":               "verbose",
		"quiet":                 "quiet",
		"debug_samples":         "debug-samples",
		"align.min_fraction":    "min-fraction",
		"align.extra_peaks":     "extra-peaks",
		"align.span":            "span",
		"align.iterations":      "iterations",
		"align.cutoff_quantile": "cutoff-quantile",
		"align.cutoff_factor":   "cutoff-factor",
		"align.workers":         "workers",
	})

	root.AddCommand(
		newAlignCmd(a),
		newServeCmd(a),
		newHTTPCmd(a),
		newScansCmd(a),
		newApplyCmd(a),
	)
	return root
}

// bindFlags makes flags override the configuration keys they are mapped to
func bindFlags(v *viper.Viper, fs *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, fs.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag %s: %v", name, err))
		}
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if err := newRootCmd().Execute(); err != nil {
		log.SetFlags(0)
		log.Fatalf("%s: %v", progName, err)
	}
}
