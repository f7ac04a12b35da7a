// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"io"
	"os"
	"time"

	"github.com/524D/rtalign/internal/align"

	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
)

func newAlignCmd(a *app) *cobra.Command {
	var outFile, recordsFile, scanRecordsFile string

	cmd := &cobra.Command{
		Use:   "align [payload.json]",
		Short: "Align the retention times of one input payload",
		Long: `Align reads one input payload, from a file or from stdin, and writes the
output payload with corrected group and scan retention times.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			aligner, err := a.newAligner()
			if err != nil {
				return err
			}

			t := time.Now()
			res, err := aligner.Align(in)
			if err != nil {
				return err
			}
			a.infof("Aligned %d samples, %d of %d groups used for calibration: %s\n",
				len(res.Diagnostics), res.GoodGroups, len(in.Groups), time.Since(t))
			if a.debug {
				debugDumpDiagnostics(a.stderr, res)
			}

			if recordsFile != "" {
				if err := writeCSV(recordsFile, res.Records); err != nil {
					return err
				}
			}
			if scanRecordsFile != "" {
				if err := writeCSV(scanRecordsFile, res.ScanRecords(in)); err != nil {
					return err
				}
			}
			return writeOutput(cmd, outFile, res.Output)
		},
	}
	cmd.Flags().StringVarP(&outFile, "output", "o", "", "output `file` (default stdout)")
	cmd.Flags().StringVar(&recordsFile, "records", "",
		"write the group records with their deviations to CSV `file`")
	cmd.Flags().StringVar(&scanRecordsFile, "scan-records", "",
		"write the original and corrected scan retention times to CSV `file`")
	return cmd
}

// readInput reads the payload from the file named in args, or from stdin
func readInput(cmd *cobra.Command, args []string) (*align.Input, error) {
	if len(args) == 0 || args[0] == "-" {
		return align.ReadInput(cmd.InOrStdin())
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return align.ReadInput(f)
}

func writeOutput(cmd *cobra.Command, outFile string, out *align.Output) error {
	var w io.Writer = cmd.OutOrStdout()
	if outFile != "" {
		f, err := os.Create(outFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return out.WriteJSON(w)
}

// writeCSV writes a slice of records with csv struct tags
func writeCSV(name string, records any) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
