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

package mf

import (
	"github.com/chewxy/math32"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gorse-io/latent/base"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/floats"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model"
)

// BPR means Bayesian Personal Ranking, is a pairwise learning algorithm for matrix factorization
// model with implicit feedback. The pairwise ranking between item i and j for user u is estimated
// by:
//
//	p(i >_u j) = \sigma( p_u^T (q_i - q_j) )
//
// Hyper-parameters:
//
//	Reg 		- The regularization parameter of the cost function that is
//				  optimized. Default is 0.01.
//	Lr 			- The learning rate of SGD. Default is 0.05.
//	RandomState	- The seed of sampling. Default is 0.
type BPR struct {
	model.BaseModel
	lr  float32
	reg float32

	// user feedback sets of the last dataset
	data      *dataset.Dataset
	nFeedback int
	userItems []mapset.Set[int32]
}

// NewBPR creates a BPR strategy.
func NewBPR(params model.Params) *BPR {
	bpr := new(BPR)
	bpr.SetParams(params)
	return bpr
}

// SetParams sets hyper-parameters of the BPR strategy.
func (bpr *BPR) SetParams(params model.Params) {
	bpr.BaseModel.SetParams(params)
	bpr.lr = bpr.Params.GetFloat32(model.Lr, 0.05)
	bpr.reg = bpr.Params.GetFloat32(model.Reg, 0.01)
}

// Iterate draws as many (user, positive item, negative item) triples as there is feedback
// and takes an SGD step on each.
func (bpr *BPR) Iterate(m *MF) {
	if m.Data == nil || m.Data.CountFeedback() == 0 {
		log.Logger().Warn("bpr without training data")
		return
	}
	rng := bpr.GetRandomGenerator()
	userFeedback := m.Data.UserFeedback()
	users := userFeedback.NonEmptyRows()
	userItems := bpr.userItemSets(m.Data)
	numItems := int32(len(m.ItemFactor))
	nFactors := m.NumFactors()
	temp := make([]float32, nFactors)
	userFactor := make([]float32, nFactors)
	positiveItemFactor := make([]float32, nFactors)
	negativeItemFactor := make([]float32, nFactors)
	for n := 0; n < m.Data.CountFeedback(); n++ {
		// Select a user and a positive item
		userIndex := users[rng.Intn(len(users))]
		items := userFeedback.Row(userIndex)
		posIndex := items[rng.Intn(len(items))]
		// Select a negative item
		negatives := rng.SampleInt32(0, numItems, 1, userItems[userIndex])
		if len(negatives) == 0 {
			continue
		}
		negIndex := negatives[0]
		// Pairwise update
		copy(userFactor, m.UserFactor[userIndex])
		copy(positiveItemFactor, m.ItemFactor[posIndex])
		copy(negativeItemFactor, m.ItemFactor[negIndex])
		floats.SubTo(positiveItemFactor, negativeItemFactor, temp)
		diff := floats.Dot(userFactor, temp)
		grad := math32.Exp(-diff) / (1.0 + math32.Exp(-diff))
		// Update positive item latent factor: +w_u
		copy(temp, userFactor)
		floats.MulConst(temp, grad)
		floats.MulConstAdd(positiveItemFactor, -bpr.reg, temp)
		floats.MulConstAdd(temp, bpr.lr, m.ItemFactor[posIndex])
		// Update negative item latent factor: -w_u
		copy(temp, userFactor)
		floats.MulConst(temp, -grad)
		floats.MulConstAdd(negativeItemFactor, -bpr.reg, temp)
		floats.MulConstAdd(temp, bpr.lr, m.ItemFactor[negIndex])
		// Update user latent factor: h_i-h_j
		floats.SubTo(positiveItemFactor, negativeItemFactor, temp)
		floats.MulConst(temp, grad)
		floats.MulConstAdd(userFactor, -bpr.reg, temp)
		floats.MulConstAdd(temp, bpr.lr, m.UserFactor[userIndex])
	}
}

// ComputeFit returns the BPR loss with L2 regularization. Each positive item is paired with
// one negative item drawn by a generator seeded with RandomState, so the fit of the same
// factors is reproducible.
func (bpr *BPR) ComputeFit(m *MF) float64 {
	var cost float64
	if m.Data != nil {
		rng := base.NewRandomGenerator(bpr.GetRandomState())
		userFeedback := m.Data.UserFeedback()
		userItems := bpr.userItemSets(m.Data)
		numItems := int32(len(m.ItemFactor))
		for _, userIndex := range userFeedback.NonEmptyRows() {
			if userIndex >= len(m.UserFactor) {
				continue
			}
			for _, posIndex := range userFeedback.Row(userIndex) {
				negatives := rng.SampleInt32(0, numItems, 1, userItems[userIndex])
				if len(negatives) == 0 || int(posIndex) >= len(m.ItemFactor) {
					continue
				}
				diff := m.Predict(userIndex, int(posIndex)) - m.Predict(userIndex, int(negatives[0]))
				cost += float64(math32.Log1p(math32.Exp(-diff)))
			}
		}
	}
	var norm float32
	for _, factor := range m.UserFactor {
		norm += floats.SquaredNorm(factor)
	}
	for _, factor := range m.ItemFactor {
		norm += floats.SquaredNorm(factor)
	}
	return cost + float64(bpr.reg*norm)
}

func (bpr *BPR) userItemSets(data *dataset.Dataset) []mapset.Set[int32] {
	if bpr.data != data || bpr.nFeedback != data.CountFeedback() {
		bpr.userItems = make([]mapset.Set[int32], data.CountUsers())
		for userIndex := range bpr.userItems {
			bpr.userItems[userIndex] = data.UserItemSet(userIndex)
		}
		bpr.data = data
		bpr.nFeedback = data.CountFeedback()
	}
	return bpr.userItems
}
