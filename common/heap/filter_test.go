// Copyright 2022 gorse Project Authors
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

package heap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTopKFilter(t *testing.T) {
	// fewer elements than k
	a := NewTopKFilter[int, float32](3)
	a.Push(10, 0.2)
	a.Push(20, 0.8)
	a.Push(30, 0.1)
	assert.Equal(t, []int{20, 10, 30}, a.PopAllValues())
	assert.Zero(t, a.Len())

	// more elements than k
	a = NewTopKFilter[int, float32](3)
	a.Push(10, 0.2)
	a.Push(20, 0.8)
	a.Push(30, 0.1)
	a.Push(40, 0.25)
	a.Push(50, 0.5)
	a.Push(12, 1)
	a.Push(67, 0.7)
	a.Push(32, 0.9)
	assert.Equal(t, []Elem[int, float32]{
		{Value: 12, Weight: 1},
		{Value: 32, Weight: 0.9},
		{Value: 20, Weight: 0.8},
	}, a.PopAll())
}

func TestTopKFilter_Zero(t *testing.T) {
	a := NewTopKFilter[string, float64](0)
	a.Push("a", 1)
	assert.Empty(t, a.PopAll())
}
