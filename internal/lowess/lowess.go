// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package lowess implements locally weighted scatterplot smoothing
// (Cleveland, 1979) with local linear fits and bisquare robustness
// iterations.
package lowess

import (
	"errors"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrNoData is returned when there is nothing to smooth
	ErrNoData = errors.New("lowess: no data")
	// ErrLengthMismatch is returned when x and y differ in length
	ErrLengthMismatch = errors.New("lowess: x and y must have the same length")
	// ErrFrac is returned for a smoothing span outside (0,1]
	ErrFrac = errors.New("lowess: frac must be in (0,1]")
)

// Options control the smoother
type Options struct {
	Frac       float64 // Fraction of the data used for each local fit
	Iterations int     // Number of robustifying iterations after the first fit
}

// DefaultOptions are the defaults of most LOWESS implementations
var DefaultOptions = Options{Frac: 2.0 / 3.0, Iterations: 3}

// Weights within h1*radius of the fitted point count fully, weights
// beyond h9*radius are zero
const (
	h1 = 0.001
	h9 = 0.999
)

// Fit smooths y as a function of x. It returns x sorted ascending and,
// for every x, the smoothed y. Tied x values are kept.
func Fit(x, y []float64, opt Options) ([]float64, []float64, error) {
	n := len(x)
	if n != len(y) {
		return nil, nil, ErrLengthMismatch
	}
	if n == 0 {
		return nil, nil, ErrNoData
	}
	if !(opt.Frac > 0 && opt.Frac <= 1) {
		return nil, nil, ErrFrac
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return x[order[i]] < x[order[j]] })
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i, o := range order {
		xs[i] = x[o]
		ys[i] = y[o]
	}
	fitted := make([]float64, n)
	if n == 1 {
		fitted[0] = ys[0]
		return xs, fitted, nil
	}

	k := int(opt.Frac*float64(n) + 1e-10)
	if k < 2 {
		k = 2
	}
	if k > n {
		k = n
	}

	robust := make([]float64, n)
	for i := range robust {
		robust[i] = 1
	}
	s := smoother{
		xs:     xs,
		ys:     ys,
		robust: robust,
		w:      make([]float64, k),
		span:   xs[n-1] - xs[0],
	}

	for iter := 0; iter <= opt.Iterations; iter++ {
		left, right := 0, k-1
		for i := 0; i < n; i++ {
			// Slide the window of k nearest neighbours along with x[i]
			for right+1 < n && xs[i] > (xs[left]+xs[right+1])/2 {
				left++
				right++
			}
			fitted[i] = s.localFit(i, left, right)
		}
		if iter == opt.Iterations {
			break
		}
		if !s.updateRobustness(fitted) {
			break
		}
	}
	return xs, fitted, nil
}

type smoother struct {
	xs, ys []float64
	robust []float64 // Robustness weight per point
	w      []float64 // Scratch weights for the current window
	span   float64   // Range of x
}

// localFit computes the smoothed value at xs[i] from a weighted linear
// fit over xs[left:right+1]
func (s *smoother) localFit(i, left, right int) float64 {
	xi := s.xs[i]
	radius := math.Max(xi-s.xs[left], s.xs[right]-xi)
	w := s.w[:right-left+1]
	sumW := 0.0
	for j := left; j <= right; j++ {
		wj := 1.0
		if radius > 0 {
			wj = tricube(math.Abs(s.xs[j]-xi), radius)
		}
		wj *= s.robust[j]
		w[j-left] = wj
		sumW += wj
	}
	if sumW <= 0 {
		return s.ys[i]
	}

	xw := s.xs[left : right+1]
	yw := s.ys[left : right+1]
	if radius > 0 {
		mean := stat.Mean(xw, w)
		spread := 0.0
		for j, xj := range xw {
			spread += w[j] * (xj - mean) * (xj - mean)
		}
		spread /= sumW
		if math.Sqrt(spread) > 0.001*s.span {
			alpha, beta := stat.LinearRegression(xw, yw, w, false)
			if yhat := alpha + beta*xi; !math.IsNaN(yhat) && !math.IsInf(yhat, 0) {
				return yhat
			}
		}
	}
	return stat.Mean(yw, w)
}

// updateRobustness recomputes the bisquare robustness weights from the
// residuals. It returns false when the residuals are (nearly) zero, in
// which case further iterations can't change the fit.
func (s *smoother) updateRobustness(fitted []float64) bool {
	res := make([]float64, len(s.ys))
	meanAbsY := 0.0
	for i := range s.ys {
		res[i] = math.Abs(s.ys[i] - fitted[i])
		meanAbsY += math.Abs(s.ys[i])
	}
	meanAbsY /= float64(len(s.ys))

	m, err := stats.Median(res)
	if err != nil {
		return false
	}
	cmad := 6 * m
	if cmad <= 1e-7*meanAbsY || cmad == 0 {
		return false
	}
	for i, r := range res {
		s.robust[i] = bisquare(r / cmad)
	}
	return true
}

func tricube(d, radius float64) float64 {
	switch {
	case d <= h1*radius:
		return 1
	case d > h9*radius:
		return 0
	}
	u := d / radius
	c := 1 - u*u*u
	return c * c * c
}

func bisquare(u float64) float64 {
	switch {
	case u <= h1:
		return 1
	case u > h9:
		return 0
	}
	c := 1 - u*u
	return c * c
}
