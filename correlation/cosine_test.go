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
	"math"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/latent/base"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// rows A:{1,2}, B:{2,3}, C:{1,2,3}
func abc() *dataset.SparseBooleanMatrix {
	return dataset.NewSparseBooleanMatrixFromRows([][]int32{
		{1, 2},
		{2, 3},
		{1, 2, 3},
	})
}

func randomRelation(numRows, numCols, numEntries int, seed int64) *dataset.SparseBooleanMatrix {
	rng := base.NewRandomGenerator(seed)
	m := dataset.NewSparseBooleanMatrix(numRows)
	for n := 0; n < numEntries; n++ {
		m.Add(rng.Intn(numRows), rng.Intn(numCols))
	}
	return m
}

func TestCosine_ComputeCorrelations(t *testing.T) {
	c, err := CreateCosine(abc())
	require.NoError(t, err)
	assert.Equal(t, 3, c.NumEntities())
	for i := 0; i < 3; i++ {
		assert.Equal(t, float32(1), c.Get(i, i))
	}
	assert.InDelta(t, 0.5, c.Get(0, 1), 1e-6)
	assert.InDelta(t, 2/math.Sqrt(6), c.Get(0, 2), 1e-6)
	assert.InDelta(t, 2/math.Sqrt(6), c.Get(1, 2), 1e-6)
	assert.Equal(t, c.Get(0, 1), c.Get(1, 0))
	assert.Equal(t, c.Get(2, 0), c.Get(0, 2))
}

func TestCosine_Properties(t *testing.T) {
	rel := randomRelation(50, 40, 200, 0)
	c, err := CreateCosine(rel)
	require.NoError(t, err)
	for x := 0; x < rel.NumRows(); x++ {
		assert.Equal(t, float32(1), c.Get(x, x))
		for y := x + 1; y < rel.NumRows(); y++ {
			a := mapset.NewSet(rel.Row(x)...)
			b := mapset.NewSet(rel.Row(y)...)
			v := c.Get(x, y)
			assert.Equal(t, v, c.Get(y, x))
			if a.Intersect(b).Cardinality() == 0 {
				assert.Zero(t, v)
			} else {
				assert.Greater(t, v, float32(0))
				assert.LessOrEqual(t, v, float32(1)+1e-6)
			}
			assert.InDelta(t, ComputeCorrelation(a, b), v, 1e-6)
		}
	}
}

func TestCosine_EmptyRows(t *testing.T) {
	rel := dataset.NewSparseBooleanMatrixFromRows([][]int32{{}, {0}, {}})
	c, err := CreateCosine(rel)
	require.NoError(t, err)
	assert.Equal(t, float32(1), c.Get(0, 0))
	assert.Zero(t, c.Get(0, 1))
	assert.Zero(t, c.Get(0, 2))
}

func TestCosine_RelationTooLarge(t *testing.T) {
	c, err := NewCosine(2)
	require.NoError(t, err)
	err = c.ComputeCorrelations(abc())
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestComputeCorrelation(t *testing.T) {
	a := mapset.NewSet[int32](1, 2)
	b := mapset.NewSet[int32](2, 3)
	assert.InDelta(t, 0.5, ComputeCorrelation(a, b), 1e-6)
	assert.InDelta(t, 1, ComputeCorrelation(a, a), 1e-6)
	assert.Zero(t, ComputeCorrelation(a, mapset.NewSet[int32](4)))
	assert.Zero(t, ComputeCorrelation(a, mapset.NewSet[int32]()))
	assert.Zero(t, ComputeCorrelation(mapset.NewSet[int32](), mapset.NewSet[int32]()))

	c, err := CreateCosine(abc())
	require.NoError(t, err)
	assert.Equal(t, ComputeCorrelation(a, b), c.ComputeCorrelation(a, b))
}

func TestCreateCosine_Overflow(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer log.ReplaceLogger(zap.New(core))()
	_, err := CreateCosine(dataset.NewSparseBooleanMatrix(MaxEntities + 1))
	assert.True(t, errors.Is(err, errors.NotSupported))
	require.Equal(t, 1, logs.FilterMessage("too many entities").Len())
	assert.Equal(t, int64(MaxEntities+1), logs.FilterMessage("too many entities").All()[0].ContextMap()["n_entities"])
}

func TestCosine_Neighbors(t *testing.T) {
	c, err := CreateCosine(dataset.NewSparseBooleanMatrixFromRows([][]int32{
		{1, 2},
		{2, 3},
		{1, 2, 3},
		{4},
	}))
	require.NoError(t, err)
	ids, scores := c.Neighbors(0, 5)
	assert.Equal(t, []int{2, 1}, ids)
	assert.InDeltaSlice(t, []float32{float32(2 / math.Sqrt(6)), 0.5}, scores, 1e-6)
	ids, _ = c.Neighbors(0, 1)
	assert.Equal(t, []int{2}, ids)
	ids, scores = c.Neighbors(3, 5)
	assert.Empty(t, ids)
	assert.Empty(t, scores)
}

func TestCosine_MaxColumnSize(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer log.ReplaceLogger(zap.New(core))()
	// column 2 is shared by all three rows
	c, err := CreateCosineWithOptions(abc(), ComputeOptions{MaxColumnSize: 2})
	require.NoError(t, err)
	warnings := logs.FilterMessage("dense column in overlap counting")
	require.Equal(t, 1, warnings.Len())
	assert.Equal(t, int64(2), warnings.All()[0].ContextMap()["column_id"])
	assert.Equal(t, int64(3), warnings.All()[0].ContextMap()["column_size"])
	// results are not truncated
	expected, err := CreateCosine(abc())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.Equal(t, expected.Get(i, j), c.Get(i, j))
		}
	}
}

func TestCosine_Metrics(t *testing.T) {
	before := testutil.ToFloat64(CorrelationPairsTotal)
	_, err := CreateCosine(abc())
	require.NoError(t, err)
	assert.Equal(t, before+3, testutil.ToFloat64(CorrelationPairsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(CorrelationComputeSeconds))
}

func TestNewCosineFromMatrix(t *testing.T) {
	c, err := CreateCosine(abc())
	require.NoError(t, err)
	alias := NewCosineFromMatrix(c.Matrix)
	assert.True(t, c.Shared())
	assert.Equal(t, c.Get(0, 1), alias.Get(0, 1))
	alias.Set(0, 1, 0.25)
	assert.InDelta(t, 0.5, c.Get(0, 1), 1e-6)
	assert.Equal(t, float32(0.25), alias.Get(0, 1))
}

func TestCosine_Recompute(t *testing.T) {
	c, err := CreateCosine(abc())
	require.NoError(t, err)
	alias := NewCosineFromMatrix(c.Matrix)
	// A and B no longer overlap
	err = c.ComputeCorrelations(dataset.NewSparseBooleanMatrixFromRows([][]int32{{1}, {3}, {1, 3}}))
	require.NoError(t, err)
	assert.Zero(t, c.Get(0, 1))
	assert.InDelta(t, 1/math.Sqrt(2), c.Get(0, 2), 1e-6)
	assert.Equal(t, float32(1), c.Get(1, 1))
	// the alias keeps previous values
	assert.InDelta(t, 0.5, alias.Get(0, 1), 1e-6)
	assert.False(t, alias.Shared())
}
