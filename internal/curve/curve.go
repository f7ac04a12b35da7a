// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

// Package curve provides the interpolants that turn a fitted drift curve
// into a function of retention time.
package curve

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/interp"
)

// ErrTooFewPoints is returned when fewer than two distinct x values remain
var ErrTooFewPoints = errors.New("curve: at least two distinct x values required")

// Linear is a piecewise linear interpolant that extrapolates linearly
// beyond its first and last knot, using the slope of the outer segments.
type Linear struct {
	xs []float64
	ys []float64
	pl interp.PiecewiseLinear
}

type point struct {
	x, y float64
}

// NewLinear fits a Linear interpolant through (x[i], y[i]).
// Input order does not matter. Pairs containing NaN are skipped and
// pairs with equal x are merged into one knot with the mean y.
func NewLinear(x, y []float64) (*Linear, error) {
	if len(x) != len(y) {
		return nil, errors.New("curve: x and y must have the same length")
	}
	pts := make([]point, 0, len(x))
	for i := range x {
		if math.IsNaN(x[i]) || math.IsNaN(y[i]) {
			continue
		}
		pts = append(pts, point{x[i], y[i]})
	}
	sort.SliceStable(pts, func(i, j int) bool { return pts[i].x < pts[j].x })

	l := &Linear{
		xs: make([]float64, 0, len(pts)),
		ys: make([]float64, 0, len(pts)),
	}
	for i := 0; i < len(pts); {
		j := i
		sum := 0.0
		for j < len(pts) && pts[j].x == pts[i].x {
			sum += pts[j].y
			j++
		}
		l.xs = append(l.xs, pts[i].x)
		l.ys = append(l.ys, sum/float64(j-i))
		i = j
	}
	if len(l.xs) < 2 {
		return nil, ErrTooFewPoints
	}
	if err := l.pl.Fit(l.xs, l.ys); err != nil {
		return nil, err
	}
	return l, nil
}

// Predict returns the interpolated value at x
func (l *Linear) Predict(x float64) float64 {
	if math.IsNaN(x) {
		return math.NaN()
	}
	n := len(l.xs)
	switch {
	case x < l.xs[0]:
		return extrapolate(l.xs[0], l.ys[0], l.xs[1], l.ys[1], x)
	case x > l.xs[n-1]:
		return extrapolate(l.xs[n-2], l.ys[n-2], l.xs[n-1], l.ys[n-1], x)
	}
	return l.pl.Predict(x)
}

// Knots returns the x and y values the interpolant passes through
func (l *Linear) Knots() ([]float64, []float64) {
	return l.xs, l.ys
}

// Y3 = Y1 + (Y2 - Y1) / (X2 - X1) * (X3 - X1)
func extrapolate(x1, y1, x2, y2, x float64) float64 {
	return y1 + (y2-y1)/(x2-x1)*(x-x1)
}

// Constant predicts the same value everywhere. A NaN Constant is what a
// degenerate fit resolves to.
type Constant float64

// Predict returns c for any x
func (c Constant) Predict(float64) float64 {
	return float64(c)
}
