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
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/heap"
	"github.com/gorse-io/latent/model/mf"
	"github.com/gorse-io/latent/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Score items for a user with a saved model",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("model")
		userIndex, _ := cmd.Flags().GetInt("user")
		itemIndex, _ := cmd.Flags().GetInt("item")
		topK, _ := cmd.Flags().GetInt("top-k")

		store, err := blob.Open(conf.Blob)
		if err != nil {
			log.Logger().Fatal("failed to open blob store", zap.Error(err))
		}
		params := conf.Model.ToParams()
		m, err := mf.New(mf.ConfigFromParams(params), mf.NewBPR(params))
		if err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}
		if err = m.LoadModel(store, name); err != nil {
			log.Logger().Fatal("failed to load model", zap.Error(err))
		}
		if cmd.Flags().Changed("item") {
			fmt.Println(m.Predict(userIndex, itemIndex))
			return
		}
		if err = writeRecommendation(os.Stdout, m, userIndex, topK); err != nil {
			log.Logger().Fatal("failed to rank items", zap.Error(err))
		}
	},
}

func init() {
	predictCommand.Flags().String("model", "bpr.txt", "name of the model file in the blob store")
	predictCommand.Flags().Int("user", 0, "dense index of the user")
	predictCommand.Flags().Int("item", 0, "dense index of the item (rank all items if not set)")
	predictCommand.Flags().Int("top-k", 10, "number of items to rank")
	_ = predictCommand.MarkFlagRequired("user")
}

// writeRecommendation renders the top-k items of a user by predicted score.
func writeRecommendation(w io.Writer, m *mf.MF, userIndex, topK int) error {
	if userIndex < 0 || userIndex > m.MaxUserID {
		return errors.NotValidf("user index %d out of range [0, %d]", userIndex, m.MaxUserID)
	}
	filter := heap.NewTopKFilter[int, float32](topK)
	for itemIndex := 0; itemIndex <= m.MaxItemID; itemIndex++ {
		if m.CanPredict(userIndex, itemIndex) {
			filter.Push(itemIndex, m.Predict(userIndex, itemIndex))
		}
	}
	table := tablewriter.NewWriter(w)
	table.Header("item", "score")
	for _, elem := range filter.PopAll() {
		if err := table.Append([]string{
			strconv.Itoa(elem.Value),
			strconv.FormatFloat(float64(elem.Weight), 'f', 4, 32),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}
