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
	"testing"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/floats"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// countingStrategy records calls and shifts every user factor by one per iteration.
type countingStrategy struct {
	iterations int
	fits       int
	snapshots  []float32
}

func (s *countingStrategy) Iterate(m *MF) {
	s.iterations++
	if len(m.UserFactor) > 0 {
		s.snapshots = append(s.snapshots, m.UserFactor[0][0])
	}
	for _, row := range m.UserFactor {
		for i := range row {
			row[i]++
		}
	}
}

func (s *countingStrategy) ComputeFit(*MF) float64 {
	s.fits++
	return float64(s.fits)
}

func newTestModel(t *testing.T, cfg Config) (*MF, *countingStrategy, *[]Diagnostic) {
	strategy := &countingStrategy{}
	m, err := New(cfg, strategy)
	require.NoError(t, err)
	var diagnostics []Diagnostic
	m.Diagnostics = func(d Diagnostic) {
		diagnostics = append(diagnostics, d)
	}
	return m, strategy, &diagnostics
}

func TestNew(t *testing.T) {
	_, err := New(Config{NFactors: 0}, &countingStrategy{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = New(Config{NFactors: 1, InitStdDev: -1}, &countingStrategy{})
	assert.True(t, errors.Is(err, errors.NotValid))
	_, err = New(NewConfig(), nil)
	assert.True(t, errors.Is(err, errors.NotValid))

	m, err := New(NewConfig(), &countingStrategy{})
	require.NoError(t, err)
	assert.Equal(t, 10, m.NumFactors())
	assert.Equal(t, NewConfig(), m.Config())
	assert.Equal(t, -1, m.MaxUserID)
	assert.Equal(t, -1, m.MaxItemID)
}

func TestConfigFromParams(t *testing.T) {
	cfg := ConfigFromParams(model.Params{
		model.NFactors:    4,
		model.InitStdDev:  0.5,
		model.RandomState: 7,
	})
	assert.Equal(t, Config{NFactors: 4, NEpochs: 30, InitMean: 0, InitStdDev: 0.5, RandomState: 7}, cfg)
	assert.Equal(t, NewConfig(), ConfigFromParams(nil))
}

func TestMF_Predict(t *testing.T) {
	m, _, diagnostics := newTestModel(t, Config{NFactors: 2})
	m.UserFactor = [][]float32{{1, 0}}
	m.ItemFactor = [][]float32{{0, 1}, {1, 1}}
	assert.Equal(t, float32(0), m.Predict(0, 0))
	assert.Equal(t, float32(1), m.Predict(0, 1))
	assert.Empty(t, *diagnostics)

	assert.Equal(t, float32(0), m.Predict(-1, 0))
	assert.Equal(t, float32(0), m.Predict(1, 0))
	assert.Equal(t, float32(0), m.Predict(0, 2))
	assert.Equal(t, float32(0), m.Predict(0, -1))
	assert.Equal(t, []Diagnostic{
		{Kind: UnknownUser, Index: -1, Bound: 1},
		{Kind: UnknownUser, Index: 1, Bound: 1},
		{Kind: UnknownItem, Index: 2, Bound: 2},
		{Kind: UnknownItem, Index: -1, Bound: 2},
	}, *diagnostics)

	// no handler
	m.Diagnostics = nil
	assert.NotPanics(t, func() { m.Predict(5, 5) })
}

func TestMF_PredictLogs(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	defer log.ReplaceLogger(zap.New(core))()
	m, err := New(Config{NFactors: 2}, &countingStrategy{})
	require.NoError(t, err)
	m.UserFactor = [][]float32{{1, 0}}
	m.ItemFactor = [][]float32{{0, 1}}
	assert.Zero(t, m.Predict(3, 0))
	entries := logs.FilterMessage("unknown user").All()
	require.Len(t, entries, 1)
	assert.Equal(t, int64(3), entries[0].ContextMap()["index"])
	assert.Equal(t, int64(1), entries[0].ContextMap()["bound"])
}

func TestMF_TrainBounds(t *testing.T) {
	cfg := Config{NFactors: 3, NEpochs: 5, InitMean: 10, InitStdDev: 0}
	m, strategy, _ := newTestModel(t, cfg)
	m.MaxUserID = 3
	m.MaxItemID = 6
	var epochs []int
	m.OnIteration = func(epoch int) {
		epochs = append(epochs, epoch)
	}
	before := testutil.ToFloat64(IterationsTotal)
	m.TrainBounds()
	assert.Equal(t, 5, strategy.iterations)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, epochs)
	assert.Equal(t, before+5, testutil.ToFloat64(IterationsTotal))
	// iterations run in order on the same factors
	assert.Equal(t, []float32{10, 11, 12, 13, 14}, strategy.snapshots)
	// fit is never computed during training
	assert.Zero(t, strategy.fits)
	assert.Len(t, m.UserFactor, 4)
	assert.Len(t, m.ItemFactor, 7)
	for _, row := range m.UserFactor {
		assert.Len(t, row, 3)
	}
	for _, row := range m.ItemFactor {
		assert.Equal(t, []float32{10, 10, 10}, row)
	}
	assert.True(t, m.CanPredict(3, 6))
	assert.False(t, m.CanPredict(4, 0))
}

func TestMF_TrainInitialization(t *testing.T) {
	cfg := Config{NFactors: 50, NEpochs: 0, InitMean: 1, InitStdDev: 0.1, RandomState: 1}
	m, strategy, _ := newTestModel(t, cfg)
	m.MaxUserID = 199
	m.MaxItemID = 99
	m.TrainBounds()
	assert.Zero(t, strategy.iterations)
	var values []float32
	for _, row := range m.UserFactor {
		values = append(values, row...)
	}
	assert.InDelta(t, 1, floats.Mean(values), 0.01)
	assert.InDelta(t, 0.1, floats.StdDev(values), 0.01)

	// the same seed gives the same factors
	other, _, _ := newTestModel(t, cfg)
	other.MaxUserID = 199
	other.MaxItemID = 99
	other.TrainBounds()
	assert.Equal(t, m.UserFactor, other.UserFactor)
	assert.Equal(t, m.ItemFactor, other.ItemFactor)
}

func TestMF_Train(t *testing.T) {
	data := dataset.NewDataset()
	data.AddFeedback("alice", "apple")
	data.AddFeedback("alice", "banana")
	data.AddFeedback("bob", "cherry")
	m, strategy, _ := newTestModel(t, Config{NFactors: 2, NEpochs: 3, InitStdDev: 0.1})
	m.Train(data)
	assert.Equal(t, 3, strategy.iterations)
	assert.Equal(t, 1, m.MaxUserID)
	assert.Equal(t, 2, m.MaxItemID)
	assert.Len(t, m.UserFactor, 2)
	assert.Len(t, m.ItemFactor, 3)
	assert.True(t, m.CanPredict(1, 2))
	assert.False(t, m.CanPredict(-1, 0))

	// users and items without feedback are not predictable
	data.AddInteraction(3, 0)
	m.Train(data)
	assert.Len(t, m.UserFactor, 4)
	assert.True(t, m.CanPredict(3, 0))
	assert.False(t, m.CanPredict(2, 0))

	assert.Equal(t, float64(1), m.ComputeFit())
	assert.Equal(t, float64(2), RecordFit(m))
	assert.Equal(t, float64(2), testutil.ToFloat64(Fit))
	m.Iterate()
	assert.Equal(t, 7, strategy.iterations)
}

func TestDiagnostic(t *testing.T) {
	assert.Equal(t, "unknown user", UnknownUser.String())
	assert.Equal(t, "unknown item", UnknownItem.String())
	assert.Equal(t, "number of factors overridden", FactorsOverridden.String())
	assert.Equal(t, "DiagnosticKind(9)", DiagnosticKind(9).String())
	assert.Equal(t, "unknown item: 5 (bound 3)", Diagnostic{Kind: UnknownItem, Index: 5, Bound: 3}.String())
	assert.NotPanics(t, func() { IgnoreDiagnostic(Diagnostic{}) })
}
