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

package blob

import (
	"io"

	"github.com/gorse-io/latent/config"
	"github.com/juju/errors"
)

// Store keeps named files such as trained models.
type Store interface {
	// Open a file for reading.
	Open(name string) (io.ReadCloser, error)
	// Create a file for writing. The file is published after the writer is closed. The
	// returned channel receives the result of publishing exactly once and is then closed.
	Create(name string) (io.WriteCloser, chan error, error)
	// List names of all files.
	List() ([]string, error)
	// Remove a file.
	Remove(name string) error
}

// Open creates the store described by cfg.
func Open(cfg config.BlobConfig) (Store, error) {
	switch cfg.Type {
	case config.BlobPOSIX:
		return NewPOSIX(cfg.Dir), nil
	case config.BlobS3:
		s, err := NewS3(cfg.S3)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return s, nil
	case config.BlobGCS:
		s, err := NewGCS(cfg.GCS)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return s, nil
	case config.BlobAzure:
		s, err := NewAzureBlob(cfg.Azure)
		if err != nil {
			return nil, errors.Trace(err)
		}
		return s, nil
	}
	return nil, errors.NotSupportedf("blob store %q", cfg.Type)
}

// Abort discards a writer returned by Store.Create. The file is not published and the
// result channel receives err.
func Abort(w io.WriteCloser, err error) {
	if c, ok := w.(interface{ CloseWithError(error) error }); ok {
		_ = c.CloseWithError(err)
		return
	}
	_ = w.Close()
}
