// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package correlation

import (
	"fmt"
	"slices"

	"github.com/juju/errors"
	"go.uber.org/atomic"
)

// MaxEntities is the largest number of entities of a Matrix. The packed upper triangle of
// N entities holds N(N+1)/2 entries, which must be addressable by a signed 32-bit index:
// 65535 * 65536 / 2 = 2147450880 <= 2^31-1.
const MaxEntities = 65535

type storage struct {
	data []float32
	refs atomic.Int32
}

func newStorage(data []float32) *storage {
	s := &storage{data: data}
	s.refs.Store(1)
	return s
}

// Matrix is a symmetric matrix of similarities between N entities. Only entries with
// row <= column are stored, packed row by row. Entries never set read as 0.
//
// Storage may be shared between matrices (see Share). A shared matrix copies its
// storage before the first write, so writes never leak to other matrices.
type Matrix struct {
	n int
	s *storage
}

// NewMatrix creates a zero matrix of n entities. It fails with errors.NotSupported if n
// exceeds MaxEntities.
func NewMatrix(n int) (*Matrix, error) {
	if n < 0 || n > MaxEntities {
		return nil, errors.NotSupportedf("correlation matrix of %d entities (at most %d)", n, MaxEntities)
	}
	return &Matrix{
		n: n,
		s: newStorage(make([]float32, packedSize(n))),
	}, nil
}

func packedSize(n int) int {
	return int(int64(n) * int64(n+1) / 2)
}

// NumEntities returns the number of rows (and columns).
func (m *Matrix) NumEntities() int {
	return m.n
}

func (m *Matrix) index(i, j int) int {
	if i > j {
		i, j = j, i
	}
	if i < 0 || j >= m.n {
		panic(fmt.Sprintf("correlation: index (%d, %d) out of range [0, %d)", i, j, m.n))
	}
	x, n := int64(i), int64(m.n)
	return int(x*n - x*(x-1)/2 + int64(j-i))
}

// Get returns the similarity between entity i and entity j.
func (m *Matrix) Get(i, j int) float32 {
	return m.s.data[m.index(i, j)]
}

// Set the similarity between entity i and entity j.
func (m *Matrix) Set(i, j int, value float32) {
	idx := m.index(i, j)
	if m.s.refs.Load() > 1 {
		copied := newStorage(slices.Clone(m.s.data))
		m.s.refs.Dec()
		m.s = copied
	}
	m.s.data[idx] = value
}

// reset sets every entry to 0.
func (m *Matrix) reset() {
	if m.s.refs.Load() > 1 {
		m.s.refs.Dec()
		m.s = newStorage(make([]float32, packedSize(m.n)))
		return
	}
	clear(m.s.data)
}

// Share returns a matrix backed by the same storage without copying.
func (m *Matrix) Share() *Matrix {
	m.s.refs.Inc()
	return &Matrix{n: m.n, s: m.s}
}

// Shared returns true if the storage is referenced by other matrices.
func (m *Matrix) Shared() bool {
	return m.s.refs.Load() > 1
}
