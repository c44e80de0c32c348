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
	mapset "github.com/deckarep/golang-set/v2"
)

// Dataset is implicit feedback between users and items. Users and items are stored with
// dense indices, and raw ids are kept in dictionaries.
type Dataset struct {
	userDict     *FreqDict
	itemDict     *FreqDict
	userFeedback *SparseBooleanMatrix
	itemFeedback *SparseBooleanMatrix // lazily built transpose
	numFeedback  int
}

func NewDataset() *Dataset {
	return &Dataset{
		userDict:     NewFreqDict(),
		itemDict:     NewFreqDict(),
		userFeedback: NewSparseBooleanMatrix(0),
	}
}

// NewDatasetFromRelation creates a dataset whose rows are users and columns are items.
// Raw ids are the decimal dense indices.
func NewDatasetFromRelation(m *SparseBooleanMatrix) *Dataset {
	d := NewDataset()
	d.userFeedback = m
	d.numFeedback = m.NumEntries()
	return d
}

// AddFeedback adds a positive interaction between raw ids. Duplicates are ignored.
func (d *Dataset) AddFeedback(userId, itemId string) {
	userIndex := d.userDict.Id(userId)
	itemIndex := d.itemDict.Id(itemId)
	d.AddInteraction(userIndex, itemIndex)
}

// AddInteraction adds a positive interaction between dense indices.
func (d *Dataset) AddInteraction(userIndex, itemIndex int) {
	if d.userFeedback.Add(userIndex, itemIndex) {
		d.numFeedback++
		d.itemFeedback = nil
	}
}

func (d *Dataset) CountUsers() int {
	return max(d.userDict.Count(), d.userFeedback.NumRows())
}

func (d *Dataset) CountItems() int {
	return max(d.itemDict.Count(), d.userFeedback.NumColumns())
}

func (d *Dataset) CountFeedback() int {
	return d.numFeedback
}

// MaxUserID is the inclusive upper bound of user indices.
func (d *Dataset) MaxUserID() int {
	return d.CountUsers() - 1
}

// MaxItemID is the inclusive upper bound of item indices.
func (d *Dataset) MaxItemID() int {
	return d.CountItems() - 1
}

func (d *Dataset) UserIndex() *FreqDict {
	return d.userDict
}

func (d *Dataset) ItemIndex() *FreqDict {
	return d.itemDict
}

// UserFeedback returns items of each user.
func (d *Dataset) UserFeedback() *SparseBooleanMatrix {
	return d.userFeedback
}

// ItemFeedback returns users of each item.
func (d *Dataset) ItemFeedback() *SparseBooleanMatrix {
	if d.itemFeedback == nil {
		d.itemFeedback = d.userFeedback.transpose()
		for len(d.itemFeedback.rows) < d.CountItems() {
			d.itemFeedback.rows = append(d.itemFeedback.rows, nil)
		}
	}
	return d.itemFeedback
}

// UserItemSet returns items of a user as a set.
func (d *Dataset) UserItemSet(userIndex int) mapset.Set[int32] {
	return mapset.NewSet(d.userFeedback.Row(userIndex)...)
}
