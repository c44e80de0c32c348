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
package log

import (
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var global atomic.Pointer[zap.Logger]

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	global.Store(l)
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	return global.Load()
}

// ReplaceLogger swaps the global logger and returns a function restoring the previous one.
func ReplaceLogger(l *zap.Logger) func() {
	prev := global.Swap(l)
	return func() {
		global.Store(prev)
	}
}

// Options describes where and how verbosely logs are written.
type Options struct {
	Debug bool
	// Path of an extra log file rotated by lumberjack. Empty means stderr only.
	Path       string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
}

func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.String("log-path", "", "path of log file")
	flagSet.Int("log-max-size", 100, "maximum size in megabytes of the log file")
	flagSet.Int("log-max-age", 0, "maximum number of days to retain old log files")
	flagSet.Int("log-max-backups", 0, "maximum number of old log files to retain")
}

// OptionsFromFlags reads flags registered by AddFlags.
func OptionsFromFlags(flagSet *pflag.FlagSet, debug bool) Options {
	opts := Options{Debug: debug}
	opts.Path, _ = flagSet.GetString("log-path")
	opts.MaxSize, _ = flagSet.GetInt("log-max-size")
	opts.MaxAge, _ = flagSet.GetInt("log-max-age")
	opts.MaxBackups, _ = flagSet.GetInt("log-max-backups")
	return opts
}

// NewLogger builds a console logger at debug level in debug mode and a JSON logger at
// info level otherwise.
func NewLogger(opts Options) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	newEncoder := zapcore.NewJSONEncoder
	level := zapcore.InfoLevel
	if opts.Debug {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		newEncoder = zapcore.NewConsoleEncoder
		level = zapcore.DebugLevel
	}
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999999")

	sink := zapcore.AddSync(os.Stderr)
	if opts.Path != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.Path,
			MaxSize:    opts.MaxSize,
			MaxAge:     opts.MaxAge,
			MaxBackups: opts.MaxBackups,
		}))
	}
	return zap.New(zapcore.NewCore(newEncoder(encoderConfig), sink, level))
}

// SetLogger replaces the global logger by one configured from command line flags.
func SetLogger(flagSet *pflag.FlagSet, debug bool) {
	ReplaceLogger(NewLogger(OptionsFromFlags(flagSet, debug)))
}
