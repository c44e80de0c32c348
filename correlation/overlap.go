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
	"slices"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/dataset"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// overlapCounter counts co-occurrences of entity pairs. Only pairs with x < y are stored
// and pairs never seen are absent.
type overlapCounter struct {
	n      int
	counts map[int64]int32
}

func newOverlapCounter(n int) *overlapCounter {
	return &overlapCounter{n: n, counts: make(map[int64]int32)}
}

func (o *overlapCounter) key(x, y int) int64 {
	return int64(x)*int64(o.n) + int64(y)
}

func (o *overlapCounter) increment(x, y int) {
	if x > y {
		x, y = y, x
	}
	o.counts[o.key(x, y)]++
}

func (o *overlapCounter) get(x, y int) int32 {
	if x > y {
		x, y = y, x
	}
	return o.counts[o.key(x, y)]
}

func (o *overlapCounter) len() int {
	return len(o.counts)
}

// forEach visits pairs with nonzero overlap in ascending (x, y) order.
func (o *overlapCounter) forEach(f func(x, y int, count int32)) {
	keys := lo.Keys(o.counts)
	slices.Sort(keys)
	n := int64(o.n)
	for _, k := range keys {
		f(int(k/n), int(k%n), o.counts[k])
	}
}

// countOverlaps counts, for every pair of rows of entities, the number of columns both
// rows contain. The cost is the sum over columns of (column size choose 2).
func countOverlaps(entities dataset.Relation, maxColumnSize int) *overlapCounter {
	transpose := entities.Transpose()
	overlap := newOverlapCounter(entities.NumRows())
	for _, columnId := range transpose.NonEmptyRows() {
		column := transpose.Row(columnId)
		if maxColumnSize > 0 && len(column) > maxColumnSize {
			log.Logger().Warn("dense column in overlap counting",
				zap.Int("column_id", columnId),
				zap.Int("column_size", len(column)),
				zap.Int("max_column_size", maxColumnSize))
		}
		for i := 0; i < len(column); i++ {
			for j := i + 1; j < len(column); j++ {
				overlap.increment(int(column[i]), int(column[j]))
			}
		}
	}
	return overlap
}
