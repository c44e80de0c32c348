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
	"fmt"

	"github.com/gorse-io/latent/base/log"
	"go.uber.org/zap"
)

type DiagnosticKind int

const (
	// UnknownUser means a prediction for a user without latent factors.
	UnknownUser DiagnosticKind = iota
	// UnknownItem means a prediction for an item without latent factors.
	UnknownItem
	// FactorsOverridden means a loaded model has a different number of factors than configured.
	FactorsOverridden
)

func (kind DiagnosticKind) String() string {
	switch kind {
	case UnknownUser:
		return "unknown user"
	case UnknownItem:
		return "unknown item"
	case FactorsOverridden:
		return "number of factors overridden"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(kind))
	}
}

// Diagnostic is a recoverable anomaly. For unknown users and items, Index is the
// requested index and Bound is the number of known entities. For overridden factors,
// Index is the loaded number of factors and Bound is the configured one.
type Diagnostic struct {
	Kind  DiagnosticKind
	Index int
	Bound int
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%v: %d (bound %d)", d.Kind, d.Index, d.Bound)
}

// DiagnosticHandler observes diagnostics of a model.
type DiagnosticHandler func(Diagnostic)

// LogDiagnostic writes a diagnostic as a warning.
func LogDiagnostic(d Diagnostic) {
	log.Logger().Warn(d.Kind.String(), zap.Int("index", d.Index), zap.Int("bound", d.Bound))
}

// IgnoreDiagnostic drops a diagnostic.
func IgnoreDiagnostic(Diagnostic) {}
