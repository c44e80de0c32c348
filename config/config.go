// Copyright 2020 gorse Project Authors
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

package config

import (
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/latent/model"
	"github.com/juju/errors"
	"github.com/spf13/viper"
)

const (
	BlobPOSIX = "posix"
	BlobS3    = "s3"
	BlobGCS   = "gcs"
	BlobAzure = "azure"
)

// Config is the configuration for latent.
type Config struct {
	Model       ModelConfig       `mapstructure:"model"`
	Correlation CorrelationConfig `mapstructure:"correlation"`
	Blob        BlobConfig        `mapstructure:"blob"`
}

// ModelConfig is the configuration of matrix factorization training.
type ModelConfig struct {
	NFactors    int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs     int     `mapstructure:"n_epochs" validate:"gte=0"`
	Lr          float32 `mapstructure:"lr" validate:"gt=0"`
	Reg         float32 `mapstructure:"reg" validate:"gte=0"`
	InitMean    float32 `mapstructure:"init_mean"`
	InitStdDev  float32 `mapstructure:"init_std" validate:"gte=0"`
	RandomState int64   `mapstructure:"random_state"`
	Verbose     int     `mapstructure:"verbose" validate:"gte=0"`
}

// ToParams converts the configuration to hyper-parameters.
func (config *ModelConfig) ToParams() model.Params {
	return model.Params{
		model.NFactors:    config.NFactors,
		model.NEpochs:     config.NEpochs,
		model.Lr:          config.Lr,
		model.Reg:         config.Reg,
		model.InitMean:    config.InitMean,
		model.InitStdDev:  config.InitStdDev,
		model.RandomState: config.RandomState,
	}
}

// CorrelationConfig is the configuration of similarity computation.
type CorrelationConfig struct {
	TopK          int `mapstructure:"top_k" validate:"gt=0"`
	MaxColumnSize int `mapstructure:"max_column_size" validate:"gte=0"`
}

// BlobConfig is the configuration of the store for model files.
type BlobConfig struct {
	Type  string          `mapstructure:"type" validate:"oneof=posix s3 gcs azure"`
	Dir   string          `mapstructure:"dir" validate:"required_if=Type posix"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
	ConnectionString string `mapstructure:"connection_string"`
	Container        string `mapstructure:"container"`
	Prefix           string `mapstructure:"prefix"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			NFactors:   10,
			NEpochs:    30,
			Lr:         0.05,
			Reg:        0.01,
			InitMean:   0,
			InitStdDev: 0.1,
			Verbose:    10,
		},
		Correlation: CorrelationConfig{
			TopK: 10,
		},
		Blob: BlobConfig{
			Type: BlobPOSIX,
			Dir:  "models",
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [model]
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_mean", defaultConfig.Model.InitMean)
	v.SetDefault("model.init_std", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	// [correlation]
	v.SetDefault("correlation.top_k", defaultConfig.Correlation.TopK)
	v.SetDefault("correlation.max_column_size", defaultConfig.Correlation.MaxColumnSize)
	// [blob]
	v.SetDefault("blob.type", defaultConfig.Blob.Type)
	v.SetDefault("blob.dir", defaultConfig.Blob.Dir)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) error {
	bindings := []configBinding{
		{"model.n_factors", "LATENT_MODEL_N_FACTORS"},
		{"model.n_epochs", "LATENT_MODEL_N_EPOCHS"},
		{"model.random_state", "LATENT_MODEL_RANDOM_STATE"},
		{"correlation.top_k", "LATENT_CORRELATION_TOP_K"},
		{"blob.type", "LATENT_BLOB_TYPE"},
		{"blob.dir", "LATENT_BLOB_DIR"},
		{"blob.s3.endpoint", "S3_ENDPOINT"},
		{"blob.s3.access_key_id", "S3_ACCESS_KEY_ID"},
		{"blob.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
		{"blob.gcs.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS"},
		{"blob.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	// other keys are bound by name, e.g. LATENT_MODEL_LR
	v.SetEnvPrefix("latent")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return nil
}

// LoadConfig loads configuration from a TOML or YAML file. The file is optional: an empty
// path yields defaults overridden by environment variables.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		switch strings.TrimPrefix(filepath.Ext(path), ".") {
		case "toml", "yaml", "yml":
		default:
			// config.toml.template and other extensions are read as TOML
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}

// Validate checks the configuration. Violations are reported as errors.NotValid.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}
