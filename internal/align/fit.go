// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package align

import (
	"errors"
	"fmt"
	"math"

	"github.com/524D/rtalign/internal/curve"
	"github.com/524D/rtalign/internal/lowess"

	"gonum.org/v1/gonum/interp"
)

// ErrDegenerateFit means a sample has too few calibration points to fit
// a drift curve. The predictor returned along with it yields NaN.
var ErrDegenerateFit = errors.New("too few calibration points for drift fit")

// CalibrationPoint is an (rt, rt_dev) pair of a good group in one sample
type CalibrationPoint struct {
	RT    float64
	RTDev float64
}

// FitDrift fits the deviation of a sample's RTs from the group medians as
// a smooth function of RT. The returned predictor evaluates the LOWESS
// curve at any RT, extrapolating linearly outside the calibrated range.
// It never returns a nil predictor.
func FitDrift(points []CalibrationPoint, span float64, iterations int) (interp.Predictor, error) {
	nan := curve.Constant(math.NaN())
	if distinctRTs(points) < 2 {
		return nan, fmt.Errorf("%w (%d points)", ErrDegenerateFit, len(points))
	}
	x := make([]float64, len(points))
	y := make([]float64, len(points))
	for i, p := range points {
		x[i] = p.RT
		y[i] = p.RTDev
	}
	xs, ys, err := lowess.Fit(x, y, lowess.Options{Frac: span, Iterations: iterations})
	if err != nil {
		return nan, err
	}
	c, err := curve.NewLinear(xs, ys)
	if err != nil {
		return nan, fmt.Errorf("%w: %v", ErrDegenerateFit, err)
	}
	return c, nil
}

func distinctRTs(points []CalibrationPoint) int {
	seen := make(map[float64]struct{}, len(points))
	for _, p := range points {
		if !math.IsNaN(p.RT) {
			seen[p.RT] = struct{}{}
		}
	}
	return len(seen)
}
