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
	"github.com/go-playground/validator/v10"
	"github.com/gorse-io/latent/model"
	"github.com/juju/errors"
)

// Config is the configuration of a latent factor model. It is validated once by New
// and not changed during training.
type Config struct {
	NFactors    int     `validate:"gte=1"` // number of latent factors
	NEpochs     int     `validate:"gte=0"` // number of training iterations
	InitMean    float32 // mean of initial latent factors
	InitStdDev  float32 `validate:"gte=0"` // standard deviation of initial latent factors
	RandomState int64   // seed of initialization
}

func NewConfig() Config {
	return Config{
		NFactors:   10,
		NEpochs:    30,
		InitMean:   0,
		InitStdDev: 0.1,
	}
}

// ConfigFromParams overlays hyper-parameters on the default configuration.
func ConfigFromParams(params model.Params) Config {
	cfg := NewConfig()
	cfg.NFactors = params.GetInt(model.NFactors, cfg.NFactors)
	cfg.NEpochs = params.GetInt(model.NEpochs, cfg.NEpochs)
	cfg.InitMean = params.GetFloat32(model.InitMean, cfg.InitMean)
	cfg.InitStdDev = params.GetFloat32(model.InitStdDev, cfg.InitStdDev)
	cfg.RandomState = params.GetInt64(model.RandomState, cfg.RandomState)
	return cfg
}

func (cfg Config) Validate() error {
	if err := validator.New().Struct(cfg); err != nil {
		return errors.NewNotValid(err, "invalid matrix factorization config")
	}
	return nil
}
