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
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/latent/base"
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/floats"
	"github.com/gorse-io/latent/dataset"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Strategy is the optimization rule of a latent factor model.
type Strategy interface {
	// Iterate performs one full pass over the training data of m, updating
	// m.UserFactor and m.ItemFactor in place.
	Iterate(m *MF)
	// ComputeFit returns the loss of m over its training data. Lower is better.
	ComputeFit(m *MF) float64
}

// MF is a matrix factorization model. The score between a user and an item is the dot
// product of their latent factors:
//
//	\hat{r}_{ui} = p_u^T q_i
//
// Latent factors are initialized from a normal distribution and then refined by a
// Strategy for a fixed number of iterations.
type MF struct {
	UserFactor [][]float32 // p_u, MaxUserID+1 rows
	ItemFactor [][]float32 // q_i, MaxItemID+1 rows
	MaxUserID  int
	MaxItemID  int
	// Data is the training data used by the strategy.
	Data *dataset.Dataset
	// Diagnostics receives recoverable anomalies. It defaults to LogDiagnostic.
	Diagnostics DiagnosticHandler
	// OnIteration is called after each training iteration, starting from 1.
	OnIteration func(epoch int)

	cfg             Config
	strategy        Strategy
	rng             base.RandomGenerator
	userPredictable *bitset.BitSet
	itemPredictable *bitset.BitSet
}

// New creates a model with a validated configuration.
func New(cfg Config, strategy Strategy) (*MF, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if strategy == nil {
		return nil, errors.NotValidf("nil strategy")
	}
	return &MF{
		MaxUserID:       -1,
		MaxItemID:       -1,
		Diagnostics:     LogDiagnostic,
		cfg:             cfg,
		strategy:        strategy,
		rng:             base.NewRandomGenerator(cfg.RandomState),
		userPredictable: bitset.New(0),
		itemPredictable: bitset.New(0),
	}, nil
}

func (m *MF) Config() Config {
	return m.cfg
}

// NumFactors returns the number of latent factors. It may differ from the configured
// value after loading a model.
func (m *MF) NumFactors() int {
	return m.cfg.NFactors
}

// Train fits the model to a dataset.
func (m *MF) Train(train *dataset.Dataset) {
	m.Data = train
	m.MaxUserID = train.MaxUserID()
	m.MaxItemID = train.MaxItemID()
	log.Logger().Info("fit mf",
		zap.Int("n_users", m.MaxUserID+1),
		zap.Int("n_items", m.MaxItemID+1),
		zap.Int("n_feedback", train.CountFeedback()),
		zap.Any("config", m.cfg))
	start := time.Now()
	m.TrainBounds()
	log.Logger().Info("fit mf complete", zap.Duration("fit_time", time.Since(start)))
}

// TrainBounds reinitializes latent factors for the current MaxUserID and MaxItemID, then
// runs NEpochs iterations of the strategy in order.
func (m *MF) TrainBounds() {
	m.UserFactor = m.rng.NormalMatrix(max(m.MaxUserID+1, 0), m.cfg.NFactors, m.cfg.InitMean, m.cfg.InitStdDev)
	m.ItemFactor = m.rng.NormalMatrix(max(m.MaxItemID+1, 0), m.cfg.NFactors, m.cfg.InitMean, m.cfg.InitStdDev)
	m.initPredictable()
	for epoch := 1; epoch <= m.cfg.NEpochs; epoch++ {
		m.strategy.Iterate(m)
		IterationsTotal.Inc()
		if m.OnIteration != nil {
			m.OnIteration(epoch)
		}
	}
}

// Iterate runs one iteration of the strategy.
func (m *MF) Iterate() {
	m.strategy.Iterate(m)
	IterationsTotal.Inc()
}

// ComputeFit returns the loss of the strategy. It is never called during training.
func (m *MF) ComputeFit() float64 {
	return m.strategy.ComputeFit(m)
}

// Predict returns the score between a user and an item. Unknown users or items are
// reported to Diagnostics and score 0, which can't be told apart from a genuine score
// of 0. Use CanPredict to check both first.
func (m *MF) Predict(userIndex, itemIndex int) float32 {
	known := true
	if userIndex < 0 || userIndex >= len(m.UserFactor) {
		m.emit(Diagnostic{Kind: UnknownUser, Index: userIndex, Bound: len(m.UserFactor)})
		known = false
	}
	if itemIndex < 0 || itemIndex >= len(m.ItemFactor) {
		m.emit(Diagnostic{Kind: UnknownItem, Index: itemIndex, Bound: len(m.ItemFactor)})
		known = false
	}
	if !known {
		return 0
	}
	return floats.Dot(m.UserFactor[userIndex], m.ItemFactor[itemIndex])
}

// CanPredict returns true if both the user and the item have latent factors, and, for a
// trained model, both have feedback in the training data.
func (m *MF) CanPredict(userIndex, itemIndex int) bool {
	if userIndex < 0 || userIndex >= len(m.UserFactor) || itemIndex < 0 || itemIndex >= len(m.ItemFactor) {
		return false
	}
	return m.userPredictable.Test(uint(userIndex)) && m.itemPredictable.Test(uint(itemIndex))
}

func (m *MF) emit(d Diagnostic) {
	if m.Diagnostics != nil {
		m.Diagnostics(d)
	}
}

func (m *MF) initPredictable() {
	m.userPredictable = bitset.New(uint(len(m.UserFactor)))
	m.itemPredictable = bitset.New(uint(len(m.ItemFactor)))
	if m.Data == nil {
		m.userPredictable.FlipRange(0, uint(len(m.UserFactor)))
		m.itemPredictable.FlipRange(0, uint(len(m.ItemFactor)))
		return
	}
	userFeedback := m.Data.UserFeedback()
	for _, userIndex := range userFeedback.NonEmptyRows() {
		if userIndex < len(m.UserFactor) {
			m.userPredictable.Set(uint(userIndex))
		}
	}
	itemFeedback := m.Data.ItemFeedback()
	for _, itemIndex := range itemFeedback.NonEmptyRows() {
		if itemIndex < len(m.ItemFactor) {
			m.itemPredictable.Set(uint(itemIndex))
		}
	}
}
