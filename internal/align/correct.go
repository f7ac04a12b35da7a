// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package align

import (
	"math"
	"sort"

	"github.com/524D/rtalign/internal/curve"

	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/stat"
)

// Correction is the result of correcting one series of RTs
type Correction struct {
	RT     []float64 // Corrected RTs, same order as the input
	Dev    []float64 // Deviation subtracted from each RT, NaN where the RT was left as is
	Masked []bool    // True where the first prediction was rejected as outlier
	Cutoff float64   // Magnitude above which a first prediction is rejected
}

// Correct applies a drift predictor to a series of RTs.
// Predictions larger in magnitude than factor times the q-quantile of all
// prediction magnitudes are not trusted: they are masked and replaced by
// linear interpolation between the accepted predictions of the same
// series. An RT for which no deviation can be obtained is left unchanged.
func Correct(rts []float64, pred interp.Predictor, q, factor float64) Correction {
	n := len(rts)
	c := Correction{
		RT:     make([]float64, n),
		Dev:    make([]float64, n),
		Masked: make([]bool, n),
		Cutoff: math.NaN(),
	}
	if n == 0 {
		return c
	}

	abs := make([]float64, 0, n)
	for i, rt := range rts {
		c.Dev[i] = pred.Predict(rt)
		if !math.IsNaN(c.Dev[i]) {
			abs = append(abs, math.Abs(c.Dev[i]))
		}
	}
	if len(abs) > 0 {
		sort.Float64s(abs)
		c.Cutoff = factor * quantile7(q, abs)
	}

	// Mask outliers, then refit on what survived
	var keepX, keepY []float64
	missing := false
	for i, d := range c.Dev {
		if math.Abs(d) > c.Cutoff {
			c.Masked[i] = true
		}
		if c.Masked[i] || math.IsNaN(d) {
			missing = true
			continue
		}
		keepX = append(keepX, rts[i])
		keepY = append(keepY, d)
	}
	if missing {
		refit, err := curve.NewLinear(keepX, keepY)
		for i, d := range c.Dev {
			if !c.Masked[i] && !math.IsNaN(d) {
				continue
			}
			if err != nil {
				c.Dev[i] = math.NaN()
			} else {
				c.Dev[i] = refit.Predict(rts[i])
			}
		}
	}

	for i, rt := range rts {
		c.RT[i] = rt - c.Dev[i]
		if math.IsNaN(c.RT[i]) || math.IsInf(c.RT[i], 0) {
			c.RT[i] = rt
			c.Dev[i] = math.NaN()
		}
	}
	return c
}

// quantile7 returns the q-quantile of sorted x with linear interpolation
// between order statistics at position (n-1)q, as R type 7 and pandas do.
// gonum's LinInterp interpolates at position nq instead, so q is mapped
// onto that.
func quantile7(q float64, x []float64) float64 {
	n := float64(len(x))
	return stat.Quantile((1+(n-1)*q)/n, stat.LinInterp, x, nil)
}

// NumMasked returns the number of rejected first predictions
func (c Correction) NumMasked() int {
	n := 0
	for _, m := range c.Masked {
		if m {
			n++
		}
	}
	return n
}
