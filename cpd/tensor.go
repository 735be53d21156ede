// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package cpd computes constrained Canonical Polyadic (CANDECOMP/PARAFAC)
// decompositions of dense in-memory tensors. Each outer sweep rebuilds the
// per-mode unfolding and Khatri-Rao coefficient matrices and delegates the
// per-mode sub-problem to a warm-started admm.Solver, one solver instance
// per tensor mode.
package cpd

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrBadShape reports non-positive dimensions or a tensor with fewer than two modes.
	ErrBadShape = errors.New("cpd: tensor dimensions must be positive with at least two modes")
	// ErrBadData reports a data slice whose length disagrees with the dimensions.
	ErrBadData = errors.New("cpd: data length does not match dimensions")
	// ErrBadMode reports a mode index outside the tensor order.
	ErrBadMode = errors.New("cpd: mode index out of range")
	// ErrBadFactors reports factor matrices that disagree on rank or are absent.
	ErrBadFactors = errors.New("cpd: factor matrices disagree on rank")
)

// Tensor is a dense real tensor stored in row-major order: the last index
// varies fastest.
type Tensor struct {
	dims []int
	data []float64
}

// NewTensor creates a zero tensor with the given mode sizes.
func NewTensor(dims ...int) (*Tensor, error) {
	size, err := checkDims(dims)
	if err != nil {
		return nil, err
	}
	t := &Tensor{
		dims: append([]int(nil), dims...),
		data: make([]float64, size),
	}
	return t, nil
}

// FromSlice wraps the given row-major data in a tensor without copying.
func FromSlice(data []float64, dims ...int) (*Tensor, error) {
	size, err := checkDims(dims)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: have %d values for %v", ErrBadData, len(data), dims)
	}
	t := &Tensor{
		dims: append([]int(nil), dims...),
		data: data,
	}
	return t, nil
}

func checkDims(dims []int) (size int, err error) {
	if len(dims) < 2 {
		return 0, ErrBadShape
	}
	size = 1
	for _, d := range dims {
		if d < 1 {
			return 0, fmt.Errorf("%w: %v", ErrBadShape, dims)
		}
		size *= d
	}
	return size, nil
}

// Order returns the number of tensor modes.
func (t *Tensor) Order() int { return len(t.dims) }

// Dims returns a copy of the mode sizes.
func (t *Tensor) Dims() []int { return append([]int(nil), t.dims...) }

// Size returns the total number of entries.
func (t *Tensor) Size() int { return len(t.data) }

// Data returns the backing row-major slice.
func (t *Tensor) Data() []float64 { return t.data }

// Norm returns the Frobenius norm over all entries.
func (t *Tensor) Norm() float64 { return floats.Norm(t.data, 2) }

// At returns the entry at the given multi-index.
func (t *Tensor) At(idx ...int) float64 { return t.data[t.offset(idx)] }

// Set stores v at the given multi-index.
func (t *Tensor) Set(v float64, idx ...int) { t.data[t.offset(idx)] = v }

func (t *Tensor) offset(idx []int) int {
	if len(idx) != len(t.dims) {
		panic("cpd: index order does not match tensor order")
	}
	off := 0
	for k, i := range idx {
		if i < 0 || i >= t.dims[k] {
			panic("cpd: index out of range")
		}
		off = off*t.dims[k] + i
	}
	return off
}

// Unfold reshapes the tensor for the given mode into the J×I matrix expected
// by the per-mode solver: column i runs along the mode while row j enumerates
// the remaining modes in order, later modes varying fastest. J is the product
// of the other modes' sizes.
func Unfold(t *Tensor, mode int) (*mat.Dense, error) {
	if mode < 0 || mode >= t.Order() {
		return nil, fmt.Errorf("%w: mode %d of order %d", ErrBadMode, mode, t.Order())
	}

	n := t.dims[mode]
	m := mat.NewDense(t.Size()/n, n, nil)

	idx := make([]int, t.Order())
	for _, v := range t.data {
		row := 0
		for k, d := range t.dims {
			if k != mode {
				row = row*d + idx[k]
			}
		}
		m.Set(row, idx[mode], v)
		step(idx, t.dims)
	}
	return m, nil
}

// Fold is the inverse of Unfold: it rebuilds a tensor with the given mode
// sizes from the J×I unfolding of the named mode.
func Fold(m *mat.Dense, mode int, dims []int) (*Tensor, error) {
	t, err := NewTensor(dims...)
	if err != nil {
		return nil, err
	}
	if mode < 0 || mode >= t.Order() {
		return nil, fmt.Errorf("%w: mode %d of order %d", ErrBadMode, mode, t.Order())
	}

	n := t.dims[mode]
	if r, c := m.Dims(); r != t.Size()/n || c != n {
		return nil, fmt.Errorf("%w: unfolding is %d×%d, want %d×%d", ErrBadData, r, c, t.Size()/n, n)
	}

	idx := make([]int, t.Order())
	for off := range t.data {
		row := 0
		for k, d := range t.dims {
			if k != mode {
				row = row*d + idx[k]
			}
		}
		t.data[off] = m.At(row, idx[mode])
		step(idx, t.dims)
	}
	return t, nil
}

// step advances a row-major multi-index by one entry.
func step(idx, dims []int) {
	for k := len(idx) - 1; k >= 0; k-- {
		if idx[k]++; idx[k] < dims[k] {
			return
		}
		idx[k] = 0
	}
}
