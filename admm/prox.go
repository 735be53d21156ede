// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package admm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// transform applies one constraint's proximal map to m in place.
// The argument m already holds the prox evaluation point 𝐌̃ - 𝐔 and the
// step size ρ scales the penalty weight of the regularizer.
type transform func(m *mat.Dense, rho float64, hp map[string]float64)

// proxTable maps each constraint kind to its required hyperparameters and
// its pure transform. Lookup happens once at configuration time.
var proxTable = map[Constraint]struct {
	params []string
	apply  transform
}{
	Unconstrained: {nil, proxIdentity},
	NonNegative:   {nil, proxNonNegative},
	LassoL1:       {[]string{"lambda"}, proxSoftThreshold},
	RidgeL2:       {[]string{"lambda"}, proxShrink},
	UnitColumn:    {nil, proxUnitColumn},
}

// proxFor resolves a constraint kind to its transform, checking that every
// required hyperparameter is present.
func proxFor(kind Constraint, hp map[string]float64) (transform, error) {
	ent, ok := proxTable[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownConstraint, kind)
	}
	for _, p := range ent.params {
		if _, ok := hp[p]; !ok {
			return nil, fmt.Errorf("%w: %q required by %v", ErrMissingHyperparam, p, kind)
		}
	}
	return ent.apply, nil
}

// Prox evaluates the proximal map of the named constraint's regularizer 𝒈 at
// the consensus point 𝐌̃ - 𝐔 and stores the result in dst:
//
//	dst = 𝚙𝚛𝚘𝚡(𝒈/ρ)(𝐌̃ - 𝐔)
//
// where 𝐌̃ is the unconstrained estimate, 𝐔 the scaled dual variable and
// ρ > 0 the ADMM step size. The function is deterministic and side-effect
// free. An unrecognized kind or an absent required hyperparameter is
// reported through ErrUnknownConstraint and ErrMissingHyperparam.
func Prox(dst *mat.Dense, estimate, dual mat.Matrix, rho float64, kind Constraint, hp map[string]float64) error {
	apply, err := proxFor(kind, hp)
	if err != nil {
		return err
	}
	dst.Sub(estimate, dual)
	apply(dst, rho, hp)
	return nil
}

func proxIdentity(*mat.Dense, float64, map[string]float64) {}

func proxNonNegative(m *mat.Dense, _ float64, _ map[string]float64) {
	m.Apply(func(_, _ int, v float64) float64 {
		return math.Max(v, zero)
	}, m)
}

// proxSoftThreshold shrinks each entry toward zero by λ/ρ and zeroes the
// entries inside the threshold band.
func proxSoftThreshold(m *mat.Dense, rho float64, hp map[string]float64) {
	t := hp["lambda"] / rho
	m.Apply(func(_, _ int, v float64) float64 {
		switch {
		case v > t:
			return v - t
		case v < -t:
			return v + t
		}
		return zero
	}, m)
}

// proxShrink is the closed-form prox of the squared ℓ₂ penalty λ‖𝐌‖².
func proxShrink(m *mat.Dense, rho float64, hp map[string]float64) {
	m.Scale(rho/(rho+two*hp["lambda"]), m)
}

// proxUnitColumn projects each non-zero column onto the unit sphere.
// Zero columns have no nearest unit vector and are left untouched.
func proxUnitColumn(m *mat.Dense, _ float64, _ map[string]float64) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		n := mat.Norm(m.ColView(j), 2)
		if n == zero {
			continue
		}
		for i := 0; i < r; i++ {
			m.Set(i, j, m.At(i, j)/n)
		}
	}
}
