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
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorse-io/latent/base/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const tempSuffix = ".tmp"

type POSIX struct {
	dir string
}

func NewPOSIX(dir string) *POSIX {
	return &POSIX{dir: dir}
}

// Open a file for reading. It returns an io.Reader that can be used to read the file's content.
func (p *POSIX) Open(name string) (io.ReadCloser, error) {
	fullPath := filepath.Join(p.dir, name)
	return os.Open(fullPath)
}

// Create a new file for writing. Data is written to a temporary file next to the target,
// which replaces the target when the writer is closed. An aborted or failed write leaves
// the existing file untouched.
func (p *POSIX) Create(name string) (io.WriteCloser, chan error, error) {
	fullPath := filepath.Join(p.dir, name)
	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return nil, nil, errors.Trace(err)
	}
	tempPath := filepath.Join(filepath.Dir(fullPath), "."+filepath.Base(fullPath)+"."+uuid.NewString()+tempSuffix)
	file, err := os.Create(tempPath)
	if err != nil {
		return nil, nil, errors.Trace(err)
	}
	done := make(chan error, 1)
	return &posixWriter{file: file, path: fullPath, done: done}, done, nil
}

// List files in the directory. Unfinished writes are excluded.
func (p *POSIX) List() ([]string, error) {
	var names []string
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || isTempFile(d.Name()) {
			return nil
		}
		name, err := filepath.Rel(p.dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(name))
		return nil
	})
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return names, errors.Trace(err)
}

func (p *POSIX) Remove(name string) error {
	return os.Remove(filepath.Join(p.dir, name))
}

func isTempFile(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, tempSuffix)
}

type posixWriter struct {
	file *os.File
	path string
	done chan error
	once sync.Once
}

func (w *posixWriter) Write(p []byte) (int, error) {
	return w.file.Write(p)
}

func (w *posixWriter) Close() error {
	err := os.ErrClosed
	w.once.Do(func() {
		err = w.file.Close()
		if err == nil {
			err = os.Rename(w.file.Name(), w.path)
		}
		if err != nil {
			w.removeTemp()
		}
		w.done <- err
		close(w.done)
	})
	return err
}

func (w *posixWriter) CloseWithError(cause error) error {
	err := os.ErrClosed
	w.once.Do(func() {
		err = w.file.Close()
		w.removeTemp()
		w.done <- cause
		close(w.done)
	})
	return err
}

func (w *posixWriter) removeTemp() {
	if err := os.Remove(w.file.Name()); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Logger().Error("failed to remove temporary file", zap.String("file", w.file.Name()), zap.Error(err))
	}
}
