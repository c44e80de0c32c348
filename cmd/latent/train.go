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
	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/common/floats"
	"github.com/gorse-io/latent/config"
	"github.com/gorse-io/latent/dataset"
	"github.com/gorse-io/latent/model/mf"
	"github.com/gorse-io/latent/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Train a BPR matrix factorization model and save it to the blob store",
	Run: func(cmd *cobra.Command, args []string) {
		path, _ := cmd.Flags().GetString("csv")
		sep, _ := cmd.Flags().GetString("sep")
		header, _ := cmd.Flags().GetBool("header")
		name, _ := cmd.Flags().GetString("model")
		overrideModelConfig(cmd, &conf.Model)
		if err := conf.Validate(); err != nil {
			log.Logger().Fatal("invalid config", zap.Error(err))
		}

		data, err := dataset.LoadCSVFile(path, sep, header)
		if err != nil {
			log.Logger().Fatal("failed to load feedback", zap.Error(err))
		}
		bar := progressbar.Default(int64(conf.Model.NEpochs), "train")
		m, err := trainModel(data, conf.Model, func(int) {
			_ = bar.Add(1)
		})
		if err != nil {
			log.Logger().Fatal("failed to train model", zap.Error(err))
		}
		_ = bar.Finish()

		store, err := blob.Open(conf.Blob)
		if err != nil {
			log.Logger().Fatal("failed to open blob store", zap.Error(err))
		}
		if err = m.SaveModel(store, name); err != nil {
			log.Logger().Fatal("failed to save model", zap.String("model", name), zap.Error(err))
		}
	},
}

func init() {
	addCSVFlags(trainCommand)
	trainCommand.Flags().String("model", "bpr.txt", "name of the model file in the blob store")
	addModelFlags(trainCommand)
}

func addModelFlags(cmd *cobra.Command) {
	cmd.Flags().Int("verbose", 10, "compute fit every n epochs (0 to disable)")
	cmd.Flags().Int("n-factors", 10, "number of latent factors")
	cmd.Flags().Int("n-epochs", 30, "number of training epochs")
	cmd.Flags().Float32("lr", 0.05, "learning rate")
	cmd.Flags().Float32("reg", 0.01, "regularization strength")
	cmd.Flags().Float32("init-mean", 0, "mean of initial latent factors")
	cmd.Flags().Float32("init-std", 0.1, "standard deviation of initial latent factors")
	cmd.Flags().Int64("random-state", 0, "seed of initialization and sampling")
}

// overrideModelConfig replaces model configuration with flags set on the command line.
func overrideModelConfig(cmd *cobra.Command, cfg *config.ModelConfig) {
	flags := cmd.Flags()
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetInt("verbose")
	}
	if flags.Changed("n-factors") {
		cfg.NFactors, _ = flags.GetInt("n-factors")
	}
	if flags.Changed("n-epochs") {
		cfg.NEpochs, _ = flags.GetInt("n-epochs")
	}
	if flags.Changed("lr") {
		cfg.Lr, _ = flags.GetFloat32("lr")
	}
	if flags.Changed("reg") {
		cfg.Reg, _ = flags.GetFloat32("reg")
	}
	if flags.Changed("init-mean") {
		cfg.InitMean, _ = flags.GetFloat32("init-mean")
	}
	if flags.Changed("init-std") {
		cfg.InitStdDev, _ = flags.GetFloat32("init-std")
	}
	if flags.Changed("random-state") {
		cfg.RandomState, _ = flags.GetInt64("random-state")
	}
}

// trainModel fits BPR on the dataset. The fit is computed and logged every cfg.Verbose epochs.
func trainModel(data *dataset.Dataset, cfg config.ModelConfig, onEpoch func(epoch int)) (*mf.MF, error) {
	params := cfg.ToParams()
	m, err := mf.New(mf.ConfigFromParams(params), mf.NewBPR(params))
	if err != nil {
		return nil, errors.Trace(err)
	}
	m.OnIteration = func(epoch int) {
		if onEpoch != nil {
			onEpoch(epoch)
		}
		if cfg.Verbose > 0 && epoch%cfg.Verbose == 0 {
			log.Logger().Info("fit bpr",
				zap.Int("epoch", epoch),
				zap.Int("n_epochs", cfg.NEpochs),
				zap.Float64("fit", mf.RecordFit(m)))
		}
	}
	m.Train(data)
	userFactors, itemFactors := lo.Flatten(m.UserFactor), lo.Flatten(m.ItemFactor)
	log.Logger().Info("latent factors",
		zap.Float32("user_mean", floats.Mean(userFactors)),
		zap.Float32("user_std", floats.StdDev(userFactors)),
		zap.Float32("item_mean", floats.Mean(itemFactors)),
		zap.Float32("item_std", floats.StdDev(itemFactors)))
	return m, nil
}
