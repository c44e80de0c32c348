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
package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/config"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model/mf"
	"github.com/gorse-io/latent/storage/blob"
	"github.com/juju/errors"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func abcDataset() *dataset.Dataset {
	data := dataset.NewDataset()
	data.AddFeedback("u1", "a")
	data.AddFeedback("u1", "b")
	data.AddFeedback("u2", "a")
	data.AddFeedback("u2", "c")
	data.AddFeedback("u3", "a")
	return data
}

func TestWriteNeighbors(t *testing.T) {
	var buf bytes.Buffer
	err := writeNeighbors(context.Background(), &buf, abcDataset(), "item", config.CorrelationConfig{TopK: 10}, 2)
	require.NoError(t, err)
	// a-b and a-c in both directions, b-c is never similar
	assert.Equal(t, 4, strings.Count(buf.String(), "0.5774"))

	buf.Reset()
	err = writeNeighbors(context.Background(), &buf, abcDataset(), "user", config.CorrelationConfig{TopK: 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(buf.String(), "0.7071"))
	assert.NotContains(t, buf.String(), "0.5000")

	err = writeNeighbors(context.Background(), &buf, abcDataset(), "feedback", config.CorrelationConfig{TopK: 1}, 1)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestOverrideModelConfig(t *testing.T) {
	cmd := &cobra.Command{Use: "train"}
	addModelFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--n-factors", "4", "--lr", "0.1", "--random-state", "7"}))
	cfg := config.GetDefaultConfig().Model
	overrideModelConfig(cmd, &cfg)
	assert.Equal(t, 4, cfg.NFactors)
	assert.Equal(t, float32(0.1), cfg.Lr)
	assert.Equal(t, int64(7), cfg.RandomState)
	// flags not set keep the configuration
	assert.Equal(t, 30, cfg.NEpochs)
	assert.Equal(t, float32(0.01), cfg.Reg)
}

func TestTrainModel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	defer log.ReplaceLogger(zap.New(core))()

	data := dataset.NewDataset()
	for u := 0; u < 8; u++ {
		for i := 0; i < 4; i++ {
			data.AddFeedback(string(rune('A'+u)), string(rune('a'+(u%2)*4+i)))
		}
	}
	cfg := config.GetDefaultConfig().Model
	cfg.NEpochs = 20
	cfg.Verbose = 5
	cfg.RandomState = 1
	var epochs int
	m, err := trainModel(data, cfg, func(int) { epochs++ })
	require.NoError(t, err)
	assert.Equal(t, 20, epochs)
	assert.Equal(t, 7, m.MaxUserID)
	assert.Equal(t, 7, m.MaxItemID)
	assert.Len(t, logs.FilterMessage("fit bpr").All(), 4)
	summary := logs.FilterMessage("latent factors").All()
	require.Len(t, summary, 1)
	assert.Contains(t, summary[0].ContextMap(), "user_std")

	cfg.NFactors = 0
	_, err = trainModel(data, cfg, nil)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestWriteRecommendation(t *testing.T) {
	m, err := mf.New(mf.NewConfig(), mf.NewBPR(nil))
	require.NoError(t, err)
	m.Diagnostics = mf.IgnoreDiagnostic
	text := "1 2\n" +
		"0 0 1\n" +
		"3 2\n" +
		"0 0 0.5\n" +
		"1 0 2\n" +
		"2 1 3\n"
	require.NoError(t, m.Load(strings.NewReader(text)))

	var buf bytes.Buffer
	require.NoError(t, writeRecommendation(&buf, m, 0, 2))
	out := buf.String()
	require.Contains(t, out, "2.0000")
	require.Contains(t, out, "0.5000")
	assert.Less(t, strings.Index(out, "2.0000"), strings.Index(out, "0.5000"))
	assert.NotContains(t, out, "0.0000")

	err = writeRecommendation(&buf, m, 1, 2)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestTrainSaveLoad(t *testing.T) {
	cfg := config.GetDefaultConfig()
	cfg.Blob.Dir = filepath.Join(t.TempDir(), "models")
	cfg.Model.NEpochs = 2
	cfg.Model.Verbose = 0
	m, err := trainModel(abcDataset(), cfg.Model, nil)
	require.NoError(t, err)
	store, err := blob.Open(cfg.Blob)
	require.NoError(t, err)
	require.NoError(t, m.SaveModel(store, "bpr.txt"))

	loaded, err := mf.New(mf.NewConfig(), mf.NewBPR(nil))
	require.NoError(t, err)
	require.NoError(t, loaded.LoadModel(store, "bpr.txt"))
	for u := 0; u <= m.MaxUserID; u++ {
		for i := 0; i <= m.MaxItemID; i++ {
			assert.Equal(t, m.Predict(u, i), loaded.Predict(u, i))
		}
	}
}

func TestSimilarityFlags(t *testing.T) {
	flag := similarityCommand.Flags().Lookup("max-column-size")
	require.NotNil(t, flag)
	assert.Equal(t, "0", flag.DefValue)
	assert.Contains(t, flag.Usage, "warn about columns")
	assert.NotContains(t, flag.Usage, "skip")
}
