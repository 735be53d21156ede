// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package admm solves the per-mode sub-problem of a constrained CP tensor
// decomposition with consensus ADMM (Alternating Direction Method of Multipliers).
//
// Each Solver owns one tensor mode. Given the mode's unfolded data 𝐗 and the
// Khatri-Rao product 𝐀 of the remaining factor matrices, a call splits the
// constrained least-squares problem
//
//	𝚖𝚒𝚗 ½‖ 𝐗 - 𝐀𝐌ᵀ ‖² + 𝒈(𝐌)
//
// into an unconstrained ridge step and a proximal projection step, coupled
// through a scaled dual variable 𝐔, and iterates until both relative
// residuals drop below the tolerance or the iteration budget is spent.
//
// # References
//
//	K. Huang, N.D. Sidiropoulos, A.P. Liavas,
//	'A Flexible and Efficient Algorithmic Framework for Constrained Matrix and Tensor Factorization'
//	IEEE Transactions on Signal Processing 64.19, 2016.
package admm

import "errors"

const (
	zero = 0.0
	one  = 1.0
	two  = 2.0
)

// Constraint enumerates the structural constraints a factor matrix may carry.
// The kind is resolved to its proximal transform once at construction.
type Constraint int

const (
	// Unconstrained applies no structure: the proximal map is the identity.
	Unconstrained Constraint = iota
	// NonNegative clamps every entry to [0, +∞).
	NonNegative
	// LassoL1 promotes sparsity with the soft-threshold operator.
	// Requires hyperparameter "lambda" ≥ 0.
	LassoL1
	// RidgeL2 shrinks every entry by the factor ρ/(ρ + 2λ).
	// Requires hyperparameter "lambda" ≥ 0.
	RidgeL2
	// UnitColumn rescales every non-zero column to unit ℓ₂ norm.
	UnitColumn
)

// String returns the constraint name used in configuration errors.
func (c Constraint) String() string {
	switch c {
	case Unconstrained:
		return "unconstrained"
	case NonNegative:
		return "non-negative"
	case LassoL1:
		return "lasso-l1"
	case RidgeL2:
		return "ridge-l2"
	case UnitColumn:
		return "unit-column"
	}
	return "unknown"
}

// Status describes how a Solve call terminated.
type Status int

const (
	// Converged both relative residuals dropped below the tolerance.
	Converged Status = iota + 1
	// ExceedMaxIter the iteration budget ran out before both residuals converged.
	ExceedMaxIter
)

var (
	// ErrInvalidConfig reports an unusable Problem at construction time.
	ErrInvalidConfig = errors.New("admm: invalid configuration")
	// ErrShapeMismatch reports call inputs whose dimensions disagree with each
	// other or with the configured mode size and rank.
	ErrShapeMismatch = errors.New("admm: input dimensions disagree")
	// ErrSingularSystem reports that the regularized Gram matrix is not
	// numerically positive definite and the Cholesky solve cannot proceed.
	ErrSingularSystem = errors.New("admm: regularized Gram matrix is not positive definite")
	// ErrUnknownConstraint reports an unrecognized constraint kind.
	ErrUnknownConstraint = errors.New("admm: unknown constraint kind")
	// ErrMissingHyperparam reports a constraint whose required hyperparameter
	// is absent from the configuration.
	ErrMissingHyperparam = errors.New("admm: missing hyperparameter")
)
