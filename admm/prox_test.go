// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package admm

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestProxIdentity(t *testing.T) {
	est := mat.NewDense(2, 2, []float64{1, -2, 3, -4})
	dual := mat.NewDense(2, 2, []float64{0.5, 0.5, -1, 0})

	var got mat.Dense
	require.NoError(t, Prox(&got, est, dual, 2, Unconstrained, nil))

	want := mat.NewDense(2, 2, []float64{0.5, -2.5, 4, -4})
	require.True(t, mat.EqualApprox(want, &got, 1e-15))
}

func TestProxNonNegative(t *testing.T) {
	est := mat.NewDense(2, 2, []float64{1, -2, 0.25, 4})
	dual := mat.NewDense(2, 2, []float64{0, 0, 0.5, 5})

	var got mat.Dense
	require.NoError(t, Prox(&got, est, dual, 2, NonNegative, nil))

	want := mat.NewDense(2, 2, []float64{1, 0, 0, 0})
	require.True(t, mat.EqualApprox(want, &got, 1e-15))
}

func TestProxSoftThreshold(t *testing.T) {
	est := mat.NewDense(2, 2, []float64{1.2, -0.3, 0.5, -2})
	dual := mat.NewDense(2, 2, nil)
	hp := map[string]float64{"lambda": 1}

	// threshold is λ/ρ = 0.5
	var got mat.Dense
	require.NoError(t, Prox(&got, est, dual, 2, LassoL1, hp))

	want := mat.NewDense(2, 2, []float64{0.7, 0, 0, -1.5})
	require.True(t, mat.EqualApprox(want, &got, 1e-15))
}

func TestProxRidge(t *testing.T) {
	est := mat.NewDense(2, 2, []float64{1, -2, 3, -4})
	dual := mat.NewDense(2, 2, nil)
	hp := map[string]float64{"lambda": 1}

	// shrinkage is ρ/(ρ+2λ) = 0.5
	var got mat.Dense
	require.NoError(t, Prox(&got, est, dual, 2, RidgeL2, hp))

	want := mat.NewDense(2, 2, []float64{0.5, -1, 1.5, -2})
	require.True(t, mat.EqualApprox(want, &got, 1e-15))
}

func TestProxUnitColumn(t *testing.T) {
	est := mat.NewDense(2, 2, []float64{3, 0, 4, 0})
	dual := mat.NewDense(2, 2, nil)

	var got mat.Dense
	require.NoError(t, Prox(&got, est, dual, 2, UnitColumn, nil))

	// first column rescaled to unit norm, zero column untouched
	want := mat.NewDense(2, 2, []float64{0.6, 0, 0.8, 0})
	require.True(t, mat.EqualApprox(want, &got, 1e-15))
}

func TestProxUnknownConstraint(t *testing.T) {
	est := mat.NewDense(1, 1, []float64{1})
	dual := mat.NewDense(1, 1, nil)

	var got mat.Dense
	err := Prox(&got, est, dual, 1, Constraint(99), nil)
	require.ErrorIs(t, err, ErrUnknownConstraint)
}

func TestProxMissingHyperparam(t *testing.T) {
	est := mat.NewDense(1, 1, []float64{1})
	dual := mat.NewDense(1, 1, nil)

	var got mat.Dense
	err := Prox(&got, est, dual, 1, LassoL1, nil)
	require.ErrorIs(t, err, ErrMissingHyperparam)

	err = Prox(&got, est, dual, 1, RidgeL2, map[string]float64{"alpha": 1})
	require.ErrorIs(t, err, ErrMissingHyperparam)
}
