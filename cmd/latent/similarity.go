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
	"context"
	"io"
	"os"
	"runtime"
	"strconv"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/parallel"
	"github.com/gorse-io/latent/config"
	"github.com/gorse-io/latent/correlation"
	"github.com/gorse-io/latent/dataset"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var similarityCommand = &cobra.Command{
	Use:   "similarity",
	Short: "Find the most similar users or items by cosine similarity",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("csv")
		sep, _ := cmd.Flags().GetString("sep")
		header, _ := cmd.Flags().GetBool("header")
		by, _ := cmd.Flags().GetString("by")
		jobs, _ := cmd.Flags().GetInt("jobs")
		if cmd.Flags().Changed("top-k") {
			conf.Correlation.TopK, _ = cmd.Flags().GetInt("top-k")
		}
		if cmd.Flags().Changed("max-column-size") {
			conf.Correlation.MaxColumnSize, _ = cmd.Flags().GetInt("max-column-size")
		}
		if err := conf.Validate(); err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}

		data, err := dataset.LoadCSVFile(path, sep, header)
		if err != nil {
			log.Logger().Fatal("failed to load feedback", zap.Error(err))
		}
		log.Logger().Info("load feedback", zap.String("csv", path),
			zap.Int("n_users", data.CountUsers()),
			zap.Int("n_items", data.CountItems()),
			zap.Int("n_feedback", data.CountFeedback()))
		if err = writeNeighbors(cmd.Context(), os.Stdout, data, by, conf.Correlation, jobs); err != nil {
			log.Logger().Fatal("failed to compute similarities", zap.Error(err))
		}
	},
}

func init() {
	addCSVFlags(similarityCommand)
	similarityCommand.Flags().String("by", "item", "compare users or items (user, item)")
	similarityCommand.Flags().Int("top-k", 10, "number of neighbors for each user or item")
	similarityCommand.Flags().Int("jobs", runtime.NumCPU(), "number of goroutines searching neighbors")
	similarityCommand.Flags().Int("max-column-size", 0, "warn about columns with more entries in overlap counting (0 disables the check)")
}

// writeNeighbors renders the top-k neighbors of every user or item as a table.
func writeNeighbors(ctx context.Context, w io.Writer, data *dataset.Dataset, by string, cfg config.CorrelationConfig, jobs int) error {
	var (
		entities dataset.Relation
		dict     *dataset.FreqDict
	)
	switch by {
	case "user":
		entities, dict = data.UserFeedback(), data.UserIndex()
	case "item":
		entities, dict = data.ItemFeedback(), data.ItemIndex()
	default:
		return errors.NotValidf("similarity by %q", by)
	}
	c, err := correlation.CreateCosineWithOptions(entities, correlation.ComputeOptions{
		MaxColumnSize: cfg.MaxColumnSize,
	})
	if err != nil {
		return errors.Trace(err)
	}

	neighbors := make([][]int, c.NumEntities())
	scores := make([][]float32, c.NumEntities())
	if err = parallel.For(ctx, c.NumEntities(), jobs, func(i int) {
		neighbors[i], scores[i] = c.Neighbors(i, cfg.TopK)
	}); err != nil {
		return errors.Trace(err)
	}

	table := tablewriter.NewWriter(w)
	table.Header(by, "neighbor", "similarity")
	for i := 0; i < c.NumEntities(); i++ {
		name, _ := dict.String(i)
		rows := lo.Map(neighbors[i], func(j int, n int) []string {
			neighbor, _ := dict.String(j)
			return []string{name, neighbor, strconv.FormatFloat(float64(scores[i][n]), 'f', 4, 32)}
		})
		for _, row := range rows {
			if err = table.Append(row); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(table.Render())
}
