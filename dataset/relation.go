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

package dataset

import (
	"fmt"
	"sort"
)

// Relation is a read-only sparse boolean matrix. Each row is a set of column indices
// whose entries are 1.
type Relation interface {
	// NumRows returns the number of rows.
	NumRows() int
	// Row returns column indices of a row in ascending order. The slice must not be modified.
	Row(i int) []int32
	// RowCount returns the number of columns in a row.
	RowCount(i int) int
	// Transpose returns the column-to-rows view.
	Transpose() Relation
	// NonEmptyRows returns indices of rows with at least one entry in ascending order.
	NonEmptyRows() []int
}

// SparseBooleanMatrix stores rows of sorted, distinct column indices.
type SparseBooleanMatrix struct {
	rows    [][]int32
	numCols int
}

// NewSparseBooleanMatrix creates a matrix with numRows empty rows. Rows grow on demand.
func NewSparseBooleanMatrix(numRows int) *SparseBooleanMatrix {
	return &SparseBooleanMatrix{rows: make([][]int32, numRows)}
}

// NewSparseBooleanMatrixFromRows creates a matrix from rows of column indices. Input rows
// are copied, sorted and deduplicated.
func NewSparseBooleanMatrixFromRows(rows [][]int32) *SparseBooleanMatrix {
	m := NewSparseBooleanMatrix(len(rows))
	for i, row := range rows {
		for _, j := range row {
			m.Add(i, int(j))
		}
	}
	return m
}

// Add sets entry (i, j) to 1. Adding an existing entry is a no-op.
func (m *SparseBooleanMatrix) Add(i, j int) bool {
	if i < 0 || j < 0 {
		panic(fmt.Sprintf("dataset: negative index (%d, %d)", i, j))
	}
	for len(m.rows) <= i {
		m.rows = append(m.rows, nil)
	}
	row := m.rows[i]
	pos := sort.Search(len(row), func(k int) bool { return row[k] >= int32(j) })
	if pos < len(row) && row[pos] == int32(j) {
		return false
	}
	row = append(row, 0)
	copy(row[pos+1:], row[pos:])
	row[pos] = int32(j)
	m.rows[i] = row
	if j >= m.numCols {
		m.numCols = j + 1
	}
	return true
}

// Contains returns true if entry (i, j) is 1.
func (m *SparseBooleanMatrix) Contains(i, j int) bool {
	row := m.Row(i)
	pos := sort.Search(len(row), func(k int) bool { return row[k] >= int32(j) })
	return pos < len(row) && row[pos] == int32(j)
}

func (m *SparseBooleanMatrix) NumRows() int {
	return len(m.rows)
}

// NumColumns returns the largest column index plus one.
func (m *SparseBooleanMatrix) NumColumns() int {
	return m.numCols
}

// NumEntries returns the number of 1 entries.
func (m *SparseBooleanMatrix) NumEntries() int {
	n := 0
	for _, row := range m.rows {
		n += len(row)
	}
	return n
}

func (m *SparseBooleanMatrix) Row(i int) []int32 {
	if i >= len(m.rows) {
		return nil
	}
	return m.rows[i]
}

func (m *SparseBooleanMatrix) RowCount(i int) int {
	return len(m.Row(i))
}

func (m *SparseBooleanMatrix) NonEmptyRows() []int {
	var ids []int
	for i, row := range m.rows {
		if len(row) > 0 {
			ids = append(ids, i)
		}
	}
	return ids
}

func (m *SparseBooleanMatrix) Transpose() Relation {
	return m.transpose()
}

func (m *SparseBooleanMatrix) transpose() *SparseBooleanMatrix {
	t := &SparseBooleanMatrix{
		rows:    make([][]int32, m.numCols),
		numCols: len(m.rows),
	}
	// rows are visited in ascending order, so every column list stays sorted
	for i, row := range m.rows {
		for _, j := range row {
			t.rows[j] = append(t.rows[j], int32(i))
		}
	}
	return t
}
