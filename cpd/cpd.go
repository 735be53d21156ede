// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/curioloop/decompose/admm"
)

// ErrZeroTensor reports an all-zero tensor, which has no meaningful
// relative reconstruction error.
var ErrZeroTensor = errors.New("cpd: tensor norm is zero")

// Config determines the behaviour of a Decompose call.
type Config struct {
	// Rank is the number of rank-one components.
	Rank int
	// MaxIterations bounds the number of outer sweeps over all modes.
	// Defaults to 100.
	MaxIterations int
	// Tolerance stops the outer loop once the relative reconstruction
	// error changes by less than it between sweeps. Defaults to 1e-6.
	Tolerance float64
	// Constraints names the structural constraint of each mode's factor.
	// A nil slice leaves every mode unconstrained; otherwise one entry
	// per mode is required.
	Constraints []admm.Constraint
	// Hyperparams are shared by all constrained modes.
	Hyperparams map[string]float64
	// InnerTolerance and InnerIterations bound each per-mode ADMM
	// sub-problem. Default to 1e-3 and 20.
	InnerTolerance  float64
	InnerIterations int
	// Seed of the deterministic factor initialization. Zero selects 1.
	Seed int64
}

// Decomposition contains the final result of a Decompose call.
type Decomposition struct {
	OK         bool         // Whether the outer loop converged.
	Factors    []*mat.Dense // One Iₙ×R factor matrix per mode.
	Iterations int          // Number of outer sweeps performed.
	RelError   float64      // Final relative reconstruction error.
}

// Decompose fits a rank-R CP model to the tensor. Factor matrices start from
// a deterministic uniform initialization, and each mode keeps its own
// admm.Solver and warm-started factor/dual state across sweeps. A sweep
// recomputes every mode's Khatri-Rao product against the latest factors and
// runs that mode's sub-problem; the loop stops when the relative error
// ‖𝐗 - 𝐗̂‖/‖𝐗‖ stalls within Tolerance or the sweep budget is spent.
func Decompose(t *Tensor, cfg Config) (*Decomposition, error) {

	if t == nil || t.Order() < 2 {
		return nil, ErrBadShape
	}

	order := t.Order()
	switch {
	case cfg.Rank < 1:
		return nil, fmt.Errorf("%w: decomposition rank must greater than 0", admm.ErrInvalidConfig)
	case cfg.Tolerance < 0 || cfg.InnerTolerance < 0:
		return nil, fmt.Errorf("%w: tolerance must not less than 0", admm.ErrInvalidConfig)
	case cfg.MaxIterations < 0 || cfg.InnerIterations < 0:
		return nil, fmt.Errorf("%w: iteration budget must not less than 0", admm.ErrInvalidConfig)
	case cfg.Constraints != nil && len(cfg.Constraints) != order:
		return nil, fmt.Errorf("%w: have %d constraints for %d modes", admm.ErrInvalidConfig, len(cfg.Constraints), order)
	}

	norm := t.Norm()
	if norm == 0 {
		return nil, ErrZeroTensor
	}

	maxIter := cfg.MaxIterations
	if maxIter == 0 {
		maxIter = 100
	}
	tol := cfg.Tolerance
	if tol == 0 {
		tol = 1e-6
	}
	innerTol := cfg.InnerTolerance
	if innerTol == 0 {
		innerTol = 1e-3
	}
	innerIter := cfg.InnerIterations
	if innerIter == 0 {
		innerIter = 20
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}

	constraint := func(mode int) admm.Constraint {
		if cfg.Constraints == nil {
			return admm.Unconstrained
		}
		return cfg.Constraints[mode]
	}

	rng := rand.New(rand.NewSource(seed))
	dims := t.Dims()

	factors := make([]*mat.Dense, order)
	states := make([]*admm.State, order)
	solvers := make([]*admm.Solver, order)
	unfoldings := make([]*mat.Dense, order)

	for n := 0; n < order; n++ {
		factor := mat.NewDense(dims[n], cfg.Rank, nil)
		for i := 0; i < dims[n]; i++ {
			for r := 0; r < cfg.Rank; r++ {
				factor.Set(i, r, rng.Float64())
			}
		}
		factors[n] = factor
		states[n] = &admm.State{
			Factor: factor,
			Dual:   mat.NewDense(dims[n], cfg.Rank, nil),
		}

		p := admm.Problem{
			Mode: n, Dim: dims[n], Rank: cfg.Rank,
			Constraint:  constraint(n),
			Hyperparams: cfg.Hyperparams,
			Stop: admm.Termination{
				Tolerance:     innerTol,
				MaxIterations: innerIter,
			},
		}
		solver, err := p.New()
		if err != nil {
			return nil, err
		}
		solvers[n] = solver

		unfolding, err := Unfold(t, n)
		if err != nil {
			return nil, err
		}
		unfoldings[n] = unfolding
	}

	ok := false
	sweeps := 0
	prev, relErr := math.Inf(1), math.Inf(1)
	for sweeps < maxIter {
		for n := 0; n < order; n++ {
			kr, err := KhatriRao(factors, n)
			if err != nil {
				return nil, err
			}
			if _, err := solvers[n].Solve(unfoldings[n], kr, states[n], 0); err != nil {
				return nil, err
			}
		}
		sweeps++

		e, err := relativeError(unfoldings[0], factors, norm)
		if err != nil {
			return nil, err
		}
		relErr = e
		if math.Abs(prev-relErr) < tol {
			ok = true
			break
		}
		prev = relErr
	}

	return &Decomposition{
		OK:         ok,
		Factors:    factors,
		Iterations: sweeps,
		RelError:   relErr,
	}, nil
}

// Reconstruct composes the dense tensor 𝐗̂ = ∑ᵣ 𝐚ᵣ⁽¹⁾ ∘ ··· ∘ 𝐚ᵣ⁽ᴺ⁾ from CP
// factor matrices.
func Reconstruct(factors []*mat.Dense) (*Tensor, error) {
	if len(factors) < 2 {
		return nil, ErrBadFactors
	}

	rank := -1
	dims := make([]int, len(factors))
	for n, f := range factors {
		var c int
		dims[n], c = f.Dims()
		if rank < 0 {
			rank = c
		} else if c != rank {
			return nil, ErrBadFactors
		}
	}

	kr, err := KhatriRao(factors, 0)
	if err != nil {
		return nil, err
	}

	var unfolding mat.Dense
	unfolding.Mul(kr, factors[0].T())
	return Fold(&unfolding, 0, dims)
}

// relativeError evaluates ‖𝐗 - 𝐗̂‖/‖𝐗‖ on the mode-0 unfolding without
// materializing the reconstructed tensor.
func relativeError(unfolding *mat.Dense, factors []*mat.Dense, norm float64) (float64, error) {
	kr, err := KhatriRao(factors, 0)
	if err != nil {
		return 0, err
	}
	var approx mat.Dense
	approx.Mul(kr, factors[0].T())
	approx.Sub(unfolding, &approx)
	return mat.Norm(&approx, 2) / norm, nil
}
