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
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/heap"
	"github.com/gorse-io/latent/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ComputeOptions tunes ComputeCorrelationsWithOptions.
type ComputeOptions struct {
	// MaxColumnSize is the largest column expected by the caller. Larger columns are
	// still counted but logged, since each costs size*(size-1)/2 increments. Zero
	// disables the check.
	MaxColumnSize int
}

// Cosine is a correlation matrix of cosine similarities between binary vectors.
type Cosine struct {
	*Matrix
}

// NewCosine creates an empty cosine matrix of n entities.
func NewCosine(n int) (*Cosine, error) {
	m, err := NewMatrix(n)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Cosine{Matrix: m}, nil
}

// NewCosineFromMatrix reuses the storage of m as cosine similarities without
// recomputation. Both matrices stay independent on writes.
func NewCosineFromMatrix(m *Matrix) *Cosine {
	return &Cosine{Matrix: m.Share()}
}

// CreateCosine creates a cosine matrix between rows of entities.
func CreateCosine(entities dataset.Relation) (*Cosine, error) {
	return CreateCosineWithOptions(entities, ComputeOptions{})
}

// CreateCosineWithOptions creates a cosine matrix between rows of entities.
func CreateCosineWithOptions(entities dataset.Relation, opts ComputeOptions) (*Cosine, error) {
	c, err := NewCosine(entities.NumRows())
	if err != nil {
		log.Logger().Error("too many entities", zap.Int("n_entities", entities.NumRows()), zap.Error(err))
		return nil, errors.Trace(err)
	}
	if err = c.ComputeCorrelationsWithOptions(entities, opts); err != nil {
		return nil, errors.Trace(err)
	}
	return c, nil
}

// ComputeCorrelations fills the matrix with cosine similarities between rows of entities.
func (c *Cosine) ComputeCorrelations(entities dataset.Relation) error {
	return c.ComputeCorrelationsWithOptions(entities, ComputeOptions{})
}

// ComputeCorrelationsWithOptions replaces every entry of the matrix by cosine similarities
// between rows of entities.
func (c *Cosine) ComputeCorrelationsWithOptions(entities dataset.Relation, opts ComputeOptions) error {
	if entities.NumRows() > c.NumEntities() {
		return errors.NotValidf("relation of %d rows for %d entities", entities.NumRows(), c.NumEntities())
	}
	start := time.Now()
	overlap := countOverlaps(entities, opts.MaxColumnSize)

	c.reset()
	for i := 0; i < c.NumEntities(); i++ {
		c.Set(i, i, 1)
	}
	overlap.forEach(func(x, y int, count int32) {
		norm := math.Sqrt(float64(entities.RowCount(x)) * float64(entities.RowCount(y)))
		c.Set(x, y, float32(float64(count)/norm))
	})

	CorrelationComputeSeconds.Observe(time.Since(start).Seconds())
	CorrelationPairsTotal.Add(float64(overlap.len()))
	log.Logger().Debug("compute cosine correlations",
		zap.Int("n_entities", c.NumEntities()),
		zap.Int("n_pairs", overlap.len()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

// ComputeCorrelation returns the cosine similarity between two sets of columns. It is 0
// if either set is empty.
func (c *Cosine) ComputeCorrelation(a, b mapset.Set[int32]) float32 {
	return ComputeCorrelation(a, b)
}

// ComputeCorrelation returns the cosine similarity between two sets of columns. It is 0
// if either set is empty.
func ComputeCorrelation(a, b mapset.Set[int32]) float32 {
	if a.Cardinality() == 0 || b.Cardinality() == 0 {
		return 0
	}
	common := 0
	b.Each(func(k int32) bool {
		if a.Contains(k) {
			common++
		}
		return false
	})
	return float32(float64(common) / math.Sqrt(float64(a.Cardinality())*float64(b.Cardinality())))
}

// Neighbors returns at most k other entities most similar to entity i in descending order
// of similarity. Entities with zero similarity are excluded.
func (c *Cosine) Neighbors(i, k int) ([]int, []float32) {
	filter := heap.NewTopKFilter[int, float32](k)
	for j := 0; j < c.NumEntities(); j++ {
		if j == i {
			continue
		}
		if score := c.Get(i, j); score > 0 {
			filter.Push(j, score)
		}
	}
	elems := filter.PopAll()
	ids := make([]int, len(elems))
	scores := make([]float32, len(elems))
	for n, e := range elems {
		ids[n] = e.Value
		scores[n] = e.Weight
	}
	return ids, scores
}
