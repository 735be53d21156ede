// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package admm

import (
	"fmt"
	"maps"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Termination specifies the stopping criteria for the consensus iteration.
type Termination struct {
	// The iteration stops when both the relative primal residual
	// ‖𝐌 - 𝐌̃‖/‖𝐌‖ and the relative dual residual ‖𝐌 - 𝐌₋‖/‖𝐔‖
	// drop below Tolerance.
	Tolerance float64
	// The iteration stops when the inner iteration count reaches limit.
	// An unbounded budget is not supported: MaxIterations must be ≥ 1.
	MaxIterations int
}

// Problem specifies the per-mode sub-problem for the ADMM solver.
type Problem struct {
	Mode int // Index of the tensor mode this solver is bound to
	Dim  int // I : size of the bound mode
	Rank int // R : decomposition rank
	// Structural constraint on the factor matrix and its hyperparameters.
	Constraint  Constraint
	Hyperparams map[string]float64
	// Stop condition
	Stop Termination
}

// State is the caller-owned warm-start pair mutated in place by Solve:
// the factor matrix of the bound mode and the scaled dual variable
// enforcing consensus between its unconstrained and constrained estimates.
// Both are I×R and keep that shape throughout a call.
type State struct {
	Factor *mat.Dense
	Dual   *mat.Dense
}

// Result contains the final result of one Solve call.
type Result struct {
	OK        bool    // Whether both residuals converged.
	Status    Status  // Final status after the iteration.
	NumIter   int     // Number of inner iterations performed.
	PrimalRes float64 // Last relative primal residual.
	DualRes   float64 // Last relative dual residual.
}

type admSpec struct {
	mode, dim, rank int
	kind            Constraint
	hyper           map[string]float64
	stop            Termination
	prox            transform
}

type admCtx struct {
	// the regularized Gram matrix 𝐋 = 𝐀ᵀ𝐀 + (ρ+β)𝐈 and its factorization.
	gram mat.SymDense
	chol mat.Cholesky
	// the normal-equation right-hand side 𝐅 = 𝐀ᵀ𝐗.
	f mat.Dense
	// the coupling anchor: the factor as received at call entry.
	anchor mat.Dense
	// per-iteration scratch.
	rhs, sol, factorT, factorP, diff mat.Dense
	// diagnostic snapshot of the most recent call's entry state.
	factorIn, dualIn mat.Dense
}

// Solver runs the consensus ADMM iteration for one tensor mode.
//
// One instance per mode: distinct instances share nothing and may run in
// parallel, but a single instance must not be invoked concurrently since
// it reuses its workspace and diagnostic fields across calls.
type Solver struct {
	admSpec
	admCtx
}

// New creates a per-mode ADMM solver for the given problem.
// The constraint kind is resolved to its proximal transform here, so a
// misconfiguration fails fast instead of deep inside the iteration.
func (p *Problem) New() (solver *Solver, err error) {

	switch {
	case p.Mode < 0:
		err = fmt.Errorf("%w: mode index must not less than 0", ErrInvalidConfig)
	case p.Dim < 1:
		err = fmt.Errorf("%w: mode size must greater than 0", ErrInvalidConfig)
	case p.Rank < 1:
		err = fmt.Errorf("%w: decomposition rank must greater than 0", ErrInvalidConfig)
	case math.IsNaN(p.Stop.Tolerance) || p.Stop.Tolerance <= zero:
		err = fmt.Errorf("%w: tolerance must greater than 0", ErrInvalidConfig)
	case p.Stop.MaxIterations < 1:
		err = fmt.Errorf("%w: max iteration must greater than 0", ErrInvalidConfig)
	}
	if err != nil {
		return
	}

	prox, err := proxFor(p.Constraint, p.Hyperparams)
	if err != nil {
		return
	}

	solver = &Solver{
		admSpec: admSpec{
			mode: p.Mode, dim: p.Dim, rank: p.Rank,
			kind:  p.Constraint,
			hyper: maps.Clone(p.Hyperparams),
			stop:  p.Stop,
			prox:  prox,
		},
	}
	return
}

// Solve updates the warm-started state st for the bound mode given the fresh
// J×I tensor unfolding 𝐗 and J×R Khatri-Rao product 𝐀 of the other modes'
// factors. The coupling weight β ≥ 0 pulls the update toward the entry
// factor when outer regularizers blend several terms on the same mode.
//
// Setup once per call:
//
//	ρ = 𝚝𝚛(𝐀ᵀ𝐀)/R
//	𝐋 = 𝐀ᵀ𝐀 + (ρ+β)𝐈
//	𝐅 = 𝐀ᵀ𝐗
//
// then each inner iteration solves the ridge system 𝐋𝐌̃ᵀ = 𝐅 + ρ(𝐌+𝐔)ᵀ + β𝐌₀ᵀ
// through the Cholesky factor of 𝐋, projects 𝐌̃ - 𝐔 through the constraint's
// proximal map, and performs the dual ascent 𝐔 += 𝐌 - 𝐌̃.
//
// A residual denominator of exactly zero never yields NaN: the residual is 0
// when its numerator is also 0 and +Inf otherwise.
//
// The matrices in st are mutated in place and remain valid on error only up
// to the failure point; no partial Result is returned.
func (s *Solver) Solve(unfolding, kr mat.Matrix, st *State, bsum float64) (*Result, error) {

	if st == nil || st.Factor == nil || st.Dual == nil {
		return nil, fmt.Errorf("%w: state must hold factor and dual matrices", ErrShapeMismatch)
	}

	var err error
	ju, iu := unfolding.Dims()
	jk, rk := kr.Dims()
	fi, fr := st.Factor.Dims()
	di, dr := st.Dual.Dims()
	switch {
	case fi != s.dim || fr != s.rank:
		err = fmt.Errorf("%w: factor is %d×%d, mode %d expects %d×%d", ErrShapeMismatch, fi, fr, s.mode, s.dim, s.rank)
	case di != fi || dr != fr:
		err = fmt.Errorf("%w: dual is %d×%d, factor is %d×%d", ErrShapeMismatch, di, dr, fi, fr)
	case rk != s.rank:
		err = fmt.Errorf("%w: kr product has %d columns, rank is %d", ErrShapeMismatch, rk, s.rank)
	case iu != s.dim:
		err = fmt.Errorf("%w: unfolding has %d columns, mode size is %d", ErrShapeMismatch, iu, s.dim)
	case ju != jk:
		err = fmt.Errorf("%w: unfolding has %d rows, kr product has %d", ErrShapeMismatch, ju, jk)
	case math.IsNaN(bsum) || bsum < zero:
		err = fmt.Errorf("%w: coupling weight must not less than 0", ErrInvalidConfig)
	}
	if err != nil {
		return nil, err
	}

	// Snapshot the entry state for diagnostics.
	s.factorIn.CloneFrom(st.Factor)
	s.dualIn.CloneFrom(st.Dual)

	// 𝐆 = 𝐀ᵀ𝐀 : Gram matrix of the Khatri-Rao coefficients, symmetric PSD.
	s.gram.SymOuterK(one, kr.T())

	// ρ = 𝚝𝚛(𝐆)/R : automatic step size scaled to the problem curvature.
	rho := mat.Trace(&s.gram) / float64(s.rank)

	// 𝐋 = 𝐆 + (ρ+β)𝐈 : SPD whenever ρ+β > 0.
	for i := 0; i < s.rank; i++ {
		s.gram.SetSym(i, i, s.gram.At(i, i)+rho+bsum)
	}
	if !s.chol.Factorize(&s.gram) {
		return nil, ErrSingularSystem
	}

	// 𝐅 = 𝐀ᵀ𝐗 : right-hand side of the normal equations.
	s.f.Mul(kr.T(), unfolding)

	// Fixed anchor of the coupling term for the remainder of the call.
	if bsum > zero {
		s.anchor.CloneFrom(st.Factor)
	}

	factor, dual := st.Factor, st.Dual
	tol := s.stop.Tolerance

	iter := 0
	var primRes, dualRes float64
	for {
		// Unconstrained ridge update: solve 𝐋𝐌̃ᵀ = 𝐅 + ρ(𝐌+𝐔)ᵀ + β𝐌₀ᵀ.
		s.diff.Add(factor, dual)
		s.rhs.Scale(rho, s.diff.T())
		s.rhs.Add(&s.rhs, &s.f)
		if bsum > zero {
			s.sol.Scale(bsum, s.anchor.T())
			s.rhs.Add(&s.rhs, &s.sol)
		}
		if err := s.chol.SolveTo(&s.sol, &s.rhs); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSingularSystem, err)
		}
		s.factorT.CloneFrom(s.sol.T())

		// Keep the pre-update factor for the dual residual.
		s.factorP.CloneFrom(factor)

		// Constrained estimate through the proximal map at 𝐌̃ - 𝐔.
		factor.Sub(&s.factorT, dual)
		s.prox(factor, rho, s.hyper)

		// Dual ascent 𝐔 += 𝐌 - 𝐌̃.
		dual.Add(dual, factor)
		dual.Sub(dual, &s.factorT)

		// Relative residuals in Frobenius norm.
		s.diff.Sub(factor, &s.factorT)
		primRes = relRes(mat.Norm(&s.diff, 2), mat.Norm(factor, 2))
		s.diff.Sub(factor, &s.factorP)
		dualRes = relRes(mat.Norm(&s.diff, 2), mat.Norm(dual, 2))

		iter++
		if (primRes < tol && dualRes < tol) || iter >= s.stop.MaxIterations {
			break
		}
	}

	status := ExceedMaxIter
	if primRes < tol && dualRes < tol {
		status = Converged
	}

	return &Result{
		OK:        status == Converged,
		Status:    status,
		NumIter:   iter,
		PrimalRes: primRes,
		DualRes:   dualRes,
	}, nil
}

// Mode returns the tensor mode index this solver is bound to.
func (s *Solver) Mode() int { return s.mode }

// Kind returns the constraint kind resolved at construction.
func (s *Solver) Kind() Constraint { return s.kind }

// EntryState returns the factor and dual matrices as received by the most
// recent Solve call. The copies are diagnostic only and have no effect on
// computation; they are overwritten by the next call.
func (s *Solver) EntryState() (factor, dual mat.Matrix) {
	return &s.factorIn, &s.dualIn
}

// relRes guards the residual ratio against a zero denominator:
// 0/0 counts as fully converged while x/0 never converges.
func relRes(num, den float64) float64 {
	if den == zero {
		if num == zero {
			return zero
		}
		return math.Inf(1)
	}
	return num / den
}
