// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/524D/rtalign/internal/align"
	"github.com/524D/rtalign/internal/curve"
	"github.com/524D/rtalign/internal/mzml"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/interp"
)

// mzRTProcessing is added to the data processing list of aligned mzML files
var mzRTProcessing = mzml.DataProcessing{
	ID: "rtalign_alignment",
	ProcessingMeth: []mzml.ProcessingMethod{{
		Order:       1000,
		SoftwareRef: progName,
		UserPar:     []mzml.UserParam{{Name: "retention time alignment"}},
	}},
}

// scanSelection picks the spectra whose retention times take part in an
// alignment
type scanSelection struct {
	msLevel   int    // 0 for all spectra
	minutes   bool   // Report retention times in minutes instead of seconds
	specRange string // Range of spectrum indexes
	rtRange   string // Retention time window
}

func (s *scanSelection) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&s.msLevel, "mslevel", 1, "use only spectra of this MS `level`, 0 for all")
	cmd.Flags().BoolVar(&s.minutes, "minutes", false, "retention times in minutes instead of seconds")
	cmd.Flags().StringVar(&s.specRange, "spectra", "",
		"use only spectra with index in `range`, e.g. 100:2000")
	cmd.Flags().StringVar(&s.rtRange, "rt", "",
		"use only spectra with retention time in `range`, e.g. 300:3600")
}

// scans returns the indexes and retention times of the selected spectra
func (s *scanSelection) scans(f *mzml.MzML) ([]int, []float64, error) {
	if f.NumSpecs() == 0 {
		return nil, nil, nil
	}
	minIdx, maxIdx, err := parseIntRange(s.specRange, 0, f.NumSpecs()-1)
	if err != nil {
		return nil, nil, fmt.Errorf("--spectra %q: %w", s.specRange, err)
	}
	minRT, maxRT, err := parseFloat64Range(s.rtRange, -math.MaxFloat64, math.MaxFloat64)
	if err != nil {
		return nil, nil, fmt.Errorf("--rt %q: %w", s.rtRange, err)
	}

	var idx []int
	var rts []float64
	for i := minIdx; i <= maxIdx; i++ {
		if s.msLevel != 0 {
			msLevel, err := f.MSLevel(i)
			if err != nil {
				return nil, nil, err
			}
			if msLevel != s.msLevel {
				continue
			}
		}
		rt, err := f.RetentionTime(i)
		if err != nil {
			id, _ := f.ScanID(i)
			return nil, nil, fmt.Errorf("spectrum %s: %w", id, err)
		}
		if s.minutes {
			rt /= 60
		}
		if rt < minRT || rt > maxRT {
			continue
		}
		idx = append(idx, i)
		rts = append(rts, rt)
	}
	return idx, rts, nil
}

// sampleID derives the sample id from the name of an mzML file
func sampleID(fileName string) string {
	base := filepath.Base(fileName)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func readMzML(fileName string) (mzml.MzML, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return mzml.MzML{}, err
	}
	defer f.Close()
	mzML, err := mzml.Read(f)
	if err != nil {
		return mzML, fmt.Errorf("%s: %w", fileName, err)
	}
	return mzML, nil
}

func newScansCmd(a *app) *cobra.Command {
	var sel scanSelection
	cmd := &cobra.Command{
		Use:   "scans <mzMLfile>...",
		Short: "Extract scan retention times from mzML files",
		Long: `Scans writes a JSON object {"rts": {...}} with the retention times of the
selected spectra of each mzML file, in file order. The sample id is the file
name without directory and extension.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rts := make(map[string][]float64, len(args))
			for _, fileName := range args {
				mzML, err := readMzML(fileName)
				if err != nil {
					return err
				}
				_, sampleRTs, err := sel.scans(&mzML)
				if err != nil {
					return fmt.Errorf("%s: %w", fileName, err)
				}
				id := sampleID(fileName)
				if _, dup := rts[id]; dup {
					return fmt.Errorf("%w: sample id %s used by more than one file", ErrArgs, id)
				}
				if sampleRTs == nil {
					sampleRTs = []float64{}
				}
				rts[id] = sampleRTs
				a.infof("%s: %d spectra\n", fileName, len(sampleRTs))
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(struct {
				RTs map[string][]float64 `json:"rts"`
			}{rts})
		},
	}
	sel.addFlags(cmd)
	return cmd
}

func newApplyCmd(a *app) *cobra.Command {
	var sel scanSelection
	var resultFile, sample, outFile string
	cmd := &cobra.Command{
		Use:   "apply --result <output.json> <mzMLfile>",
		Short: "Write corrected retention times into an mzML file",
		Long: `Apply takes the corrected scan retention times of one sample from an output
payload and writes them into the sample's mzML file. Spectra that were not
selected (see --mslevel) are shifted by the correction interpolated from their
neighbours. --mslevel and --minutes must match the values used with "scans".

The mzML file that is produced does not contain an index.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inFile := args[0]
			if sample == "" {
				sample = sampleID(inFile)
			}
			if outFile == "" {
				outFile = strings.TrimSuffix(inFile, filepath.Ext(inFile)) + "-rtalign.mzML"
			}
			if outFile == inFile {
				return fmt.Errorf("%w: output would overwrite %s", ErrArgs, inFile)
			}
			corrected, err := readCorrectedRTs(resultFile, sample)
			if err != nil {
				return err
			}
			mzML, err := readMzML(inFile)
			if err != nil {
				return err
			}
			n, err := applyRTs(&mzML, &sel, corrected)
			if err != nil {
				return fmt.Errorf("%s: %w", inFile, err)
			}
			mzML.AppendSoftwareInfo(progName, progVersion)
			mzML.AppendDataProcessing(mzRTProcessing)

			f, err := os.Create(outFile)
			if err != nil {
				return err
			}
			if err := mzML.Write(f); err != nil {
				f.Close()
				return err
			}
			a.infof("%s: updated %d of %d spectra\n", outFile, n, mzML.NumSpecs())
			return f.Close()
		},
	}
	sel.addFlags(cmd)
	cmd.Flags().StringVar(&resultFile, "result", "", "output payload `file` of align")
	cmd.Flags().StringVar(&sample, "sample", "", "sample `id` (default: mzML file name without extension)")
	cmd.Flags().StringVarP(&outFile, "output", "o", "",
		"output `file` (default: <mzMLfile>-rtalign.mzML)")
	_ = cmd.MarkFlagRequired("result")
	return cmd
}

func readCorrectedRTs(resultFile, sample string) ([]float64, error) {
	f, err := os.Open(resultFile)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out align.Output
	if err := json.NewDecoder(f).Decode(&out); err != nil {
		return nil, fmt.Errorf("%s: %w", resultFile, err)
	}
	rts, ok := out.Samples[sample]
	if !ok {
		return nil, fmt.Errorf("%w: sample %s not found in %s", ErrArgs, sample, resultFile)
	}
	return rts, nil
}

// applyRTs replaces the retention times of the selected spectra by the
// corrected ones and shifts all other spectra by the interpolated
// correction. It returns the number of spectra updated.
func applyRTs(f *mzml.MzML, sel *scanSelection, corrected []float64) (int, error) {
	idx, rts, err := sel.scans(f)
	if err != nil {
		return 0, err
	}
	if len(idx) != len(corrected) {
		return 0, fmt.Errorf("%w: %d selected spectra but %d corrected retention times",
			ErrArgs, len(idx), len(corrected))
	}
	scale := 1.0
	if sel.minutes {
		scale = 60
	}

	shift := make([]float64, len(rts))
	selected := make(map[int]int, len(idx))
	for k, i := range idx {
		shift[k] = corrected[k] - rts[k]
		selected[i] = k
	}
	// Without two distinct selected spectra the other spectra keep their RT
	var pred interp.Predictor = curve.Constant(0)
	if c, err := curve.NewLinear(rts, shift); err == nil {
		pred = c
	}

	n := 0
	for i := 0; i < f.NumSpecs(); i++ {
		var newRT float64
		if k, ok := selected[i]; ok {
			newRT = corrected[k] * scale
		} else {
			rt, err := f.RetentionTime(i)
			if err != nil {
				continue
			}
			d := pred.Predict(rt / scale)
			if math.IsNaN(d) {
				continue
			}
			newRT = rt + d*scale
		}
		if err := f.SetRetentionTime(i, newRT); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
