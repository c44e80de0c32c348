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
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gorse-io/latent/base/log"
	"github.com/gorse-io/latent/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Save writes latent factors as text:
//
//	<numUsers> <numFactors>
//	<userIndex> <factorIndex> <value>
//	...
//	<numItems> <numFactors>
//	<itemIndex> <factorIndex> <value>
//	...
//
// Entries are in row-major order. The number of factors is the width of the factor rows,
// which must be the same for users and items.
func (m *MF) Save(w io.Writer) error {
	numFactors, err := m.factorWidth()
	if err != nil {
		return errors.Trace(err)
	}
	bw := bufio.NewWriter(w)
	if err = writeFactors(bw, m.UserFactor, numFactors); err != nil {
		return errors.Trace(err)
	}
	if err = writeFactors(bw, m.ItemFactor, numFactors); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(bw.Flush())
}

// factorWidth returns the common width of user and item factor rows, or the configured
// number of factors if there are no rows.
func (m *MF) factorWidth() (int, error) {
	width := -1
	check := func(entity string, factors [][]float32) error {
		for i, row := range factors {
			if width < 0 {
				width = len(row)
			} else if len(row) != width {
				return errors.NotValidf("%s %d with %d factors mismatch %d factors", entity, i, len(row), width)
			}
		}
		return nil
	}
	if err := check("user", m.UserFactor); err != nil {
		return 0, err
	}
	if err := check("item", m.ItemFactor); err != nil {
		return 0, err
	}
	if width < 0 {
		return m.cfg.NFactors, nil
	}
	return width, nil
}

func writeFactors(w *bufio.Writer, factors [][]float32, numFactors int) error {
	if _, err := fmt.Fprintf(w, "%d %d\n", len(factors), numFactors); err != nil {
		return err
	}
	for i, row := range factors {
		for f, v := range row {
			if _, err := fmt.Fprintf(w, "%d %d %s\n", i, f, strconv.FormatFloat(float64(v), 'g', -1, 32)); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads latent factors written by Save. The model is only changed if the whole
// input is valid. The number of factors in the input replaces the configured one, and
// MaxUserID and MaxItemID are set from the input.
func (m *MF) Load(r io.Reader) error {
	p := &factorParser{scanner: bufio.NewScanner(r)}
	// user factors
	fields, err := p.next()
	if err != nil {
		return errors.Trace(err)
	}
	if fields == nil {
		return errors.NotValidf("model without user header")
	}
	numUsers, numFactors, err := p.parseHeader(fields, "user")
	if err != nil {
		return errors.Trace(err)
	}
	userFactor := newFactors(numUsers, numFactors)
	for {
		if fields, err = p.next(); err != nil {
			return errors.Trace(err)
		}
		if len(fields) != 3 {
			break
		}
		if err = p.parseEntry(fields, userFactor, numFactors, "user"); err != nil {
			return errors.Trace(err)
		}
	}
	// item factors
	if fields == nil {
		return errors.NotValidf("model without item header")
	}
	numItems, numItemFactors, err := p.parseHeader(fields, "item")
	if err != nil {
		return errors.Trace(err)
	}
	if numItemFactors != numFactors {
		return errors.NotValidf("line %d: %d item factors mismatch %d user factors", p.lineNumber, numItemFactors, numFactors)
	}
	itemFactor := newFactors(numItems, numFactors)
	for {
		if fields, err = p.next(); err != nil {
			return errors.Trace(err)
		}
		if fields == nil {
			break
		}
		if len(fields) != 3 {
			return errors.NotValidf("line %d with %d fields", p.lineNumber, len(fields))
		}
		if err = p.parseEntry(fields, itemFactor, numFactors, "item"); err != nil {
			return errors.Trace(err)
		}
	}

	if numFactors != m.cfg.NFactors {
		m.emit(Diagnostic{Kind: FactorsOverridden, Index: numFactors, Bound: m.cfg.NFactors})
		m.cfg.NFactors = numFactors
	}
	m.UserFactor = userFactor
	m.ItemFactor = itemFactor
	m.MaxUserID = numUsers - 1
	m.MaxItemID = numItems - 1
	m.Data = nil
	m.initPredictable()
	return nil
}

// MaxFactorEntries is the largest number of entries (rows times factors) of a factor
// matrix accepted by Load. It bounds the memory allocated from a model header to 1 GiB
// per matrix.
const MaxFactorEntries = 1 << 28

func newFactors(numRows, numFactors int) [][]float32 {
	factors := make([][]float32, numRows)
	for i := range factors {
		factors[i] = make([]float32, numFactors)
	}
	return factors
}

type factorParser struct {
	scanner    *bufio.Scanner
	lineNumber int
}

// next returns fields of the next non-blank line, or nil at the end of input.
func (p *factorParser) next() ([]string, error) {
	for p.scanner.Scan() {
		p.lineNumber++
		if fields := strings.Fields(p.scanner.Text()); len(fields) > 0 {
			return fields, nil
		}
	}
	return nil, p.scanner.Err()
}

func (p *factorParser) parseHeader(fields []string, entity string) (numRows, numFactors int, err error) {
	if len(fields) != 2 {
		return 0, 0, errors.NotValidf("line %d: %s header with %d fields", p.lineNumber, entity, len(fields))
	}
	if numRows, err = strconv.Atoi(fields[0]); err != nil || numRows < 0 {
		return 0, 0, errors.NotValidf("line %d: number of %ss %q", p.lineNumber, entity, fields[0])
	}
	if numFactors, err = strconv.Atoi(fields[1]); err != nil || numFactors < 1 {
		return 0, 0, errors.NotValidf("line %d: number of factors %q", p.lineNumber, fields[1])
	}
	if int64(numFactors) > MaxFactorEntries || (numRows > 0 && int64(numFactors) > MaxFactorEntries/int64(numRows)) {
		return 0, 0, errors.NotValidf("line %d: %d %ss with %d factors (at most %d entries)",
			p.lineNumber, numRows, entity, numFactors, MaxFactorEntries)
	}
	return numRows, numFactors, nil
}

func (p *factorParser) parseEntry(fields []string, factors [][]float32, numFactors int, entity string) error {
	index, err := strconv.Atoi(fields[0])
	if err != nil {
		return errors.NotValidf("line %d: %s index %q", p.lineNumber, entity, fields[0])
	}
	if index < 0 || index >= len(factors) {
		return errors.NotValidf("line %d: %s index %d out of range [0, %d)", p.lineNumber, entity, index, len(factors))
	}
	factor, err := strconv.Atoi(fields[1])
	if err != nil {
		return errors.NotValidf("line %d: factor index %q", p.lineNumber, fields[1])
	}
	if factor < 0 || factor >= numFactors {
		return errors.NotValidf("line %d: factor index %d out of range [0, %d)", p.lineNumber, factor, numFactors)
	}
	value, err := strconv.ParseFloat(fields[2], 32)
	if err != nil {
		return errors.NotValidf("line %d: value %q", p.lineNumber, fields[2])
	}
	factors[index][factor] = float32(value)
	return nil
}

// SaveModel writes the model to a store. The file is not published if writing fails.
func (m *MF) SaveModel(store blob.Store, name string) error {
	w, done, err := store.Create(name)
	if err != nil {
		return errors.Trace(err)
	}
	if err = m.Save(w); err != nil {
		blob.Abort(w, err)
		<-done
		return errors.Trace(err)
	}
	if err = w.Close(); err != nil {
		return errors.Trace(err)
	}
	if err = <-done; err != nil {
		return errors.Trace(err)
	}
	log.Logger().Info("save model", zap.String("name", name),
		zap.Int("n_users", len(m.UserFactor)),
		zap.Int("n_items", len(m.ItemFactor)),
		zap.Int("n_factors", m.cfg.NFactors))
	return nil
}

// LoadModel reads the model from a store.
func (m *MF) LoadModel(store blob.Store, name string) error {
	r, err := store.Open(name)
	if err != nil {
		return errors.Trace(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Logger().Error("failed to close model", zap.String("name", name), zap.Error(err))
		}
	}()
	if err = m.Load(r); err != nil {
		return errors.Annotatef(err, "load model %s", name)
	}
	return nil
}
