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

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/cmd/version"
	"github.com/gorse-io/latent/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var conf *config.Config

var rootCommand = &cobra.Command{
	Use:   "latent",
	Short: "Cosine similarities and latent factor models on implicit feedback.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// setup logger
		debug, _ := cmd.Flags().GetBool("debug")
		log.SetLogger(cmd.Flags(), debug)

		// load config
		configPath, _ := cmd.Flags().GetString("config")
		var err error
		conf, err = config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.String("config", configPath), zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var versionCommand = &cobra.Command{
	Use:              "version",
	Short:            "Print the version of latent",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Print(version.BuildInfo())
	},
}

func init() {
	log.AddFlags(rootCommand.PersistentFlags())
	rootCommand.PersistentFlags().Bool("debug", false, "use debug log mode")
	rootCommand.PersistentFlags().StringP("config", "c", "", "configuration file path")
	rootCommand.AddCommand(versionCommand, similarityCommand, trainCommand, predictCommand)
}

// addCSVFlags registers flags of the feedback file.
func addCSVFlags(cmd *cobra.Command) {
	cmd.Flags().String("csv", "", "load feedback from CSV file")
	cmd.Flags().String("sep", ",", "load CSV file with separator")
	cmd.Flags().Bool("header", false, "load CSV file with header")
	_ = cmd.MarkFlagRequired("csv")
}

func main() {
	defer func() {
		_ = log.Logger().Sync()
	}()
	if err := rootCommand.Execute(); err != nil {
		log.Logger().Fatal("failed to execute command", zap.Error(err))
	}
}
