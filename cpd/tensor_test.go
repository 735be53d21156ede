// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cpd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rangeTensor(t *testing.T, dims ...int) *Tensor {
	t.Helper()
	size := 1
	for _, d := range dims {
		size *= d
	}
	data := make([]float64, size)
	for i := range data {
		data[i] = float64(i)
	}
	ten, err := FromSlice(data, dims...)
	require.NoError(t, err)
	return ten
}

func TestTensorShape(t *testing.T) {
	_, err := NewTensor(3)
	require.ErrorIs(t, err, ErrBadShape)
	_, err = NewTensor(3, 0, 2)
	require.ErrorIs(t, err, ErrBadShape)
	_, err = FromSlice([]float64{1, 2, 3}, 2, 2)
	require.ErrorIs(t, err, ErrBadData)

	ten := rangeTensor(t, 2, 3, 2)
	require.Equal(t, 3, ten.Order())
	require.Equal(t, []int{2, 3, 2}, ten.Dims())
	require.Equal(t, 12, ten.Size())

	// row-major: t[i,j,k] = 6i + 2j + k
	require.Equal(t, 0.0, ten.At(0, 0, 0))
	require.Equal(t, 5.0, ten.At(0, 2, 1))
	require.Equal(t, 9.0, ten.At(1, 1, 1))

	ten.Set(42, 1, 2, 0)
	require.Equal(t, 42.0, ten.At(1, 2, 0))
}

func TestUnfold(t *testing.T) {
	ten := rangeTensor(t, 2, 3, 2)

	_, err := Unfold(ten, 3)
	require.ErrorIs(t, err, ErrBadMode)

	// mode 1: rows pair (i,k) with k fastest, columns run along j
	m, err := Unfold(ten, 1)
	require.NoError(t, err)
	r, c := m.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 3, c)

	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 2; k++ {
				require.Equal(t, ten.At(i, j, k), m.At(i*2+k, j))
			}
		}
	}

	// mode 0: rows pair (j,k) with k fastest, columns run along i
	m, err = Unfold(ten, 0)
	require.NoError(t, err)
	r, c = m.Dims()
	require.Equal(t, 6, r)
	require.Equal(t, 2, c)
	require.Equal(t, ten.At(1, 2, 1), m.At(2*2+1, 1))

	for mode := 0; mode < ten.Order(); mode++ {
		m, err := Unfold(ten, mode)
		require.NoError(t, err)
		back, err := Fold(m, mode, ten.Dims())
		require.NoError(t, err)
		require.Equal(t, ten.Data(), back.Data())
	}
}
