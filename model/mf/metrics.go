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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	IterationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "latent",
		Subsystem: "mf",
		Name:      "iterations_total",
	})
	Fit = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "latent",
		Subsystem: "mf",
		Name:      "fit",
	})
)

// RecordFit computes the fit of a model and exports it.
func RecordFit(m *MF) float64 {
	fit := m.ComputeFit()
	Fit.Set(fit)
	return fit
}
