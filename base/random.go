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
package base

import (
	"math/rand"

	mapset "github.com/deckarep/golang-set/v2"
)

// RandomGenerator draws initial latent factors and negative samples. Generators with
// the same seed produce the same sequence.
type RandomGenerator struct {
	*rand.Rand
}

func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewSource(seed))}
}

// NormalMatrix returns a rows x cols matrix of independent draws from N(mean, stdDev²),
// filled row by row.
func (rng RandomGenerator) NormalMatrix(rows, cols int, mean, stdDev float32) [][]float32 {
	m := make([][]float32, rows)
	for i := range m {
		m[i] = make([]float32, cols)
		for j := range m[i] {
			m[i][j] = mean + stdDev*float32(rng.NormFloat64())
		}
	}
	return m
}

// SampleInt32 draws up to n distinct values from [low, high) that are not in exclude.
// A nil exclude excludes nothing. If candidates may be scarce, the first n of them are
// returned in ascending order, so fewer than n values means the range is exhausted.
func (rng RandomGenerator) SampleInt32(low, high int32, n int, exclude mapset.Set[int32]) []int32 {
	excluded := func(v int32) bool {
		return exclude != nil && exclude.Contains(v)
	}
	numExcluded := 0
	if exclude != nil {
		numExcluded = exclude.Cardinality()
	}
	if n >= int(high-low)-numExcluded {
		candidates := make([]int32, 0, n)
		for v := low; v < high && len(candidates) < n; v++ {
			if !excluded(v) {
				candidates = append(candidates, v)
			}
		}
		return candidates
	}
	// rejection sampling terminates since more than n candidates remain
	drawn := mapset.NewThreadUnsafeSet[int32]()
	sampled := make([]int32, 0, n)
	for len(sampled) < n {
		v := low + rng.Int31n(high-low)
		if !excluded(v) && !drawn.Contains(v) {
			drawn.Add(v)
			sampled = append(sampled, v)
		}
	}
	return sampled
}
