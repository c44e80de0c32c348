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
	"context"
	"io"
	"os"
	"path"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/gorse-io/latent/config"
	"github.com/juju/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(cfg config.GCSConfig) (*GCS, error) {
	var opts []option.ClientOption
	if endpoint := os.Getenv("GCS_EMULATOR_ENDPOINT"); endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
		opts = append(opts, option.WithoutAuthentication())
	}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return newGCS(client, cfg.Bucket, cfg.Prefix), nil
}

func newGCS(client *storage.Client, bucket, prefix string) *GCS {
	return &GCS{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

func (g *GCS) Open(name string) (io.ReadCloser, error) {
	r, err := g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name)).NewReader(context.Background())
	if err != nil {
		return nil, errors.Trace(err)
	}
	return r, nil
}

// Create a new object for writing. The object is committed when the writer is closed.
func (g *GCS) Create(name string) (io.WriteCloser, chan error, error) {
	ctx, cancel := context.WithCancelCause(context.Background())
	wc := g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name)).NewWriter(ctx)
	done := make(chan error, 1)
	return &gcsWriter{Writer: wc, cancel: cancel, done: done}, done, nil
}

type gcsWriter struct {
	*storage.Writer
	cancel context.CancelCauseFunc
	done   chan error
	once   sync.Once
}

func (w *gcsWriter) Close() error {
	err := os.ErrClosed
	w.once.Do(func() {
		err = w.Writer.Close()
		w.cancel(nil)
		w.done <- err
		close(w.done)
	})
	return err
}

// CloseWithError cancels the upload. Nothing is committed.
func (w *gcsWriter) CloseWithError(cause error) error {
	err := os.ErrClosed
	w.once.Do(func() {
		w.cancel(cause)
		err = w.Writer.Close()
		w.done <- cause
		close(w.done)
	})
	return err
}

func (g *GCS) List() ([]string, error) {
	var names []string
	prefix := g.prefix
	if prefix != "" {
		prefix += "/"
	}
	it := g.client.Bucket(g.bucket).Objects(context.Background(), &storage.Query{
		Prefix: prefix,
	})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Trace(err)
		}
		names = append(names, strings.TrimPrefix(attrs.Name, prefix))
	}
	return names, nil
}

func (g *GCS) Remove(name string) error {
	return g.client.Bucket(g.bucket).Object(path.Join(g.prefix, name)).Delete(context.Background())
}
