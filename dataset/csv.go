// Copyright 2021 gorse Project Authors
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

package dataset

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/latent/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// ReadLines parse fields of each line for csv file.
func ReadLines(sc *bufio.Scanner, sep string, handler func(int, []string) error) error {
	lineCount := 0               // line number of current position
	fields := make([]string, 0)  // fields for current line
	builder := strings.Builder{} // string builder for current field
	quoted := false              // whether current position in quote
	separator := []rune(sep)
	for sc.Scan() {
		// read line
		lineStr := sc.Text()
		line := []rune(lineStr)
		// start of line
		if quoted {
			builder.WriteString("\r\n")
		}
		// parse line
		for i := 0; i < len(line); i++ {
			if !quoted && hasRunePrefix(line[i:], separator) {
				// end of field
				fields = append(fields, builder.String())
				builder.Reset()
				i += len(separator) - 1
			} else if line[i] == '"' {
				if quoted {
					if i+1 >= len(line) || line[i+1] != '"' {
						// end of quoted
						quoted = false
					} else {
						i++
						builder.WriteRune('"')
					}
				} else {
					// start of quoted
					quoted = true
				}
			} else {
				builder.WriteRune(line[i])
			}
		}
		// end of line
		if !quoted {
			fields = append(fields, builder.String())
			builder.Reset()
			if err := handler(lineCount, fields); err != nil {
				return err
			}
			fields = []string{}
		}
		// increase line count
		lineCount++
	}
	return sc.Err()
}

func hasRunePrefix(s, prefix []rune) bool {
	if len(prefix) == 0 || len(s) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if s[i] != r {
			return false
		}
	}
	return true
}

// LoadCSV loads user-item pairs, one per line. Extra fields are ignored and blank lines
// are skipped.
func LoadCSV(r io.Reader, sep string, header bool) (*Dataset, error) {
	d := NewDataset()
	err := ReadLines(bufio.NewScanner(r), sep, func(lineNumber int, fields []string) error {
		if header && lineNumber == 0 {
			return nil
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			return nil
		}
		if len(fields) < 2 {
			return errors.NotValidf("line %d with %d fields", lineNumber+1, len(fields))
		}
		userId, itemId := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if userId == "" || itemId == "" {
			return errors.NotValidf("line %d with empty id", lineNumber+1)
		}
		d.AddFeedback(userId, itemId)
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return d, nil
}

// LoadCSVFile loads user-item pairs from a file.
func LoadCSVFile(path, sep string, header bool) (*Dataset, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.Logger().Error("failed to close file", zap.String("path", path), zap.Error(err))
		}
	}()
	d, err := LoadCSV(file, sep, header)
	if err != nil {
		return nil, errors.Annotatef(err, "load %s", path)
	}
	log.Logger().Info("load dataset",
		zap.String("path", path),
		zap.Int("n_users", d.CountUsers()),
		zap.Int("n_items", d.CountItems()),
		zap.Int("n_feedback", d.CountFeedback()))
	return d, nil
}
