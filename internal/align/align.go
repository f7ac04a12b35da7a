// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package align corrects retention time drift between samples.
//
// Groups of features that were matched across samples serve as
// calibrants: for every sample, the deviation of its RTs from the group
// medians is smoothed with LOWESS and the resulting curve is subtracted
// from the group RTs and from the RTs of all scans of the sample.
package align

import (
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"
)

// Params control the alignment
type Params struct {
	MinFraction    float64 // Fraction of all samples a group must occur in to calibrate on
	ExtraPeaks     int     // Max number of extra records a sample may have in a good group
	Span           float64 // LOWESS smoothing span
	Iterations     int     // LOWESS robustifying iterations
	CutoffQuantile float64 // Quantile of |deviation| used for the outlier cutoff
	CutoffFactor   float64 // Multiplier applied to that quantile
	Workers        int     // Number of samples processed concurrently
}

// DefaultParams returns the parameters used unless configured otherwise
func DefaultParams() Params {
	return Params{
		MinFraction:    0.9,
		ExtraPeaks:     1,
		Span:           0.2,
		Iterations:     3,
		CutoffQuantile: 0.9,
		CutoffFactor:   2,
		Workers:        1,
	}
}

// Validate checks that the parameters are usable
func (p Params) Validate() error {
	switch {
	case p.MinFraction < 0 || p.MinFraction > 1:
		return fmt.Errorf("min fraction %v not in [0,1]", p.MinFraction)
	case p.ExtraPeaks < 0:
		return fmt.Errorf("extra peaks %d is negative", p.ExtraPeaks)
	case !(p.Span > 0 && p.Span <= 1):
		return fmt.Errorf("span %v not in (0,1]", p.Span)
	case p.Iterations < 0:
		return fmt.Errorf("iterations %d is negative", p.Iterations)
	case p.CutoffQuantile < 0 || p.CutoffQuantile > 1:
		return fmt.Errorf("cutoff quantile %v not in [0,1]", p.CutoffQuantile)
	case !(p.CutoffFactor > 0):
		return fmt.Errorf("cutoff factor %v must be positive", p.CutoffFactor)
	case p.Workers < 1:
		return fmt.Errorf("workers %d must be at least 1", p.Workers)
	}
	return nil
}

// Diagnostics describe what happened to one sample
type Diagnostics struct {
	Sample            string
	CalibrationPoints int     // Good group records of this sample
	Degenerate        bool    // No drift curve could be fitted
	GroupRecords      int     // Group records corrected
	GroupCutoff       float64 // Outlier cutoff for the group RTs
	GroupMasked       int     // Group RTs whose first prediction was rejected
	Scans             int     // Scan RTs corrected
	ScanCutoff        float64 // Outlier cutoff for the scan RTs
	ScanMasked        int     // Scan RTs whose first prediction was rejected
}

// Result holds the output payload and the per-sample diagnostics
type Result struct {
	Output      *Output
	Records     []GroupRecord // Deviation augmented group records
	GoodGroups  int
	MinSample   float64
	Diagnostics []Diagnostics // Ordered by sample id
}

// Aligner runs alignments with fixed parameters.
// It holds no state between calls and is safe for concurrent use.
type Aligner struct {
	par    Params
	logger *log.Logger
}

// New returns an Aligner. A nil logger discards log output.
func New(par Params, logger *log.Logger) (*Aligner, error) {
	if err := par.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Aligner{par: par, logger: logger}, nil
}

// Params returns the parameters of the aligner
func (a *Aligner) Params() Params {
	return a.par
}

type sampleResult struct {
	groups map[string]float64
	scans  []float64
	diag   Diagnostics
}

// Align corrects all group and scan RTs of the input.
// The sample set is the set of keys of in.RTs. A sample without a usable
// drift curve keeps its RTs; it never affects the other samples.
func (a *Aligner) Align(in *Input) (*Result, error) {
	if in == nil || in.Groups == nil {
		return nil, ErrMissingGroups
	}
	if in.RTs == nil {
		return nil, ErrMissingRTs
	}

	records := BuildGroupRecords(in.Groups)
	samples := sortedKeys(in.RTs)
	minSample := float64(len(samples)) * a.par.MinFraction
	good := QualifyGroups(records, minSample, a.par.ExtraPeaks)
	a.logger.Printf("%d groups, %d good (min samples %.2f), %d samples",
		len(in.Groups), len(good), minSample, len(samples))

	// Index the records of each sample once, so that workers only read
	bySample := make(map[string][]int, len(samples))
	for i, r := range records {
		bySample[r.Sample] = append(bySample[r.Sample], i)
	}

	results := make([]sampleResult, len(samples))
	var g errgroup.Group
	g.SetLimit(a.par.Workers)
	for i, s := range samples {
		i, s := i, s
		g.Go(func() error {
			results[i] = a.alignSample(s, records, bySample[s], in.RTs[s])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := newOutput(samples)
	res := &Result{
		Output:      out,
		Records:     records,
		GoodGroups:  len(good),
		MinSample:   minSample,
		Diagnostics: make([]Diagnostics, len(samples)),
	}
	for i, s := range samples {
		out.Groups[s] = results[i].groups
		out.Samples[s] = results[i].scans
		res.Diagnostics[i] = results[i].diag
	}
	return res, nil
}

// alignSample fits the drift curve of one sample and applies it to the
// sample's group records and scans
func (a *Aligner) alignSample(sample string, records []GroupRecord, idx []int,
	scans []float64) sampleResult {

	diag := Diagnostics{Sample: sample}
	var points []CalibrationPoint
	groupRTs := make([]float64, len(idx))
	for k, i := range idx {
		r := records[i]
		groupRTs[k] = r.RT
		if r.Good {
			points = append(points, CalibrationPoint{RT: r.RT, RTDev: r.RTDev})
		}
	}
	diag.CalibrationPoints = len(points)

	pred, err := FitDrift(points, a.par.Span, a.par.Iterations)
	if err != nil {
		diag.Degenerate = true
		if errors.Is(err, ErrDegenerateFit) {
			a.logger.Printf("sample %s: %v, RTs left uncorrected", sample, err)
		} else {
			a.logger.Printf("sample %s: drift fit failed: %v", sample, err)
		}
	}

	gc := Correct(groupRTs, pred, a.par.CutoffQuantile, a.par.CutoffFactor)
	groups := make(map[string]float64, len(idx))
	for k, i := range idx {
		// Duplicate records of a group: the last one wins
		groups[records[i].Group] = gc.RT[k]
	}
	diag.GroupRecords = len(idx)
	diag.GroupCutoff = gc.Cutoff
	diag.GroupMasked = gc.NumMasked()

	sc := Correct(scans, pred, a.par.CutoffQuantile, a.par.CutoffFactor)
	diag.Scans = len(scans)
	diag.ScanCutoff = sc.Cutoff
	diag.ScanMasked = sc.NumMasked()

	a.logger.Printf("sample %s: %d calibration points, %d/%d group RTs masked, %d/%d scan RTs masked",
		sample, diag.CalibrationPoints, diag.GroupMasked, diag.GroupRecords,
		diag.ScanMasked, diag.Scans)

	return sampleResult{groups: groups, scans: sc.RT, diag: diag}
}

// ScanRecords returns the scan records of the input with their corrected
// retention times
func (r *Result) ScanRecords(in *Input) []ScanRecord {
	records := BuildScanRecords(in.RTs)
	for i := range records {
		rec := &records[i]
		if corrected := r.Output.Samples[rec.Sample]; rec.Scan < len(corrected) {
			rec.RTCorrected = corrected[rec.Scan]
		}
	}
	return records
}

// AlignJSON reads one input payload from r and writes the output payload
// to w. Nothing is written when the payload is invalid.
func (a *Aligner) AlignJSON(r io.Reader, w io.Writer) error {
	in, err := ReadInput(r)
	if err != nil {
		return err
	}
	res, err := a.Align(in)
	if err != nil {
		return err
	}
	return res.Output.WriteJSON(w)
}
