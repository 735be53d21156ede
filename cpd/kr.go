// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"gonum.org/v1/gonum/mat"
)

// KhatriRao returns the column-wise Kronecker product of the factor matrices,
// leaving out the factor at index skip (pass a negative skip to combine all).
// Row ordering matches Unfold: factors combine in mode order with later
// factors varying fastest, so for factors of sizes I₁×R ··· Iₙ×R the result
// is (∏Iₖ)×R.
func KhatriRao(factors []*mat.Dense, skip int) (*mat.Dense, error) {

	rank, rows := -1, 1
	for k, f := range factors {
		if k == skip {
			continue
		}
		fr, fc := f.Dims()
		if rank < 0 {
			rank = fc
		} else if fc != rank {
			return nil, ErrBadFactors
		}
		rows *= fr
	}
	if rank < 1 {
		return nil, ErrBadFactors
	}

	buf := make([]float64, rank)
	for c := range buf {
		buf[c] = 1
	}

	cur := 1
	for k, f := range factors {
		if k == skip {
			continue
		}
		fr, _ := f.Dims()
		next := make([]float64, cur*fr*rank)
		for a := 0; a < cur; a++ {
			src := buf[a*rank : (a+1)*rank]
			for i := 0; i < fr; i++ {
				dst := next[(a*fr+i)*rank:][:rank]
				for c := 0; c < rank; c++ {
					dst[c] = src[c] * f.At(i, c)
				}
			}
		}
		buf, cur = next, cur*fr
	}

	return mat.NewDense(rows, rank, buf), nil
}
