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
	"os"
	"path/filepath"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPOSIX(t *testing.T) {
	testStore(t, NewPOSIX(filepath.Join(t.TempDir(), "blob")))
}

func TestPOSIX_Nested(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blob")
	client := NewPOSIX(dir)
	names, err := client.List()
	assert.NoError(t, err)
	assert.Empty(t, names)

	w, done, err := client.Create("bpr/model.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("1 1"))
	assert.NoError(t, err)
	// unfinished writes are hidden
	names, err = client.List()
	assert.NoError(t, err)
	assert.Empty(t, names)
	assert.NoError(t, w.Close())
	assert.NoError(t, <-done)
	assert.ErrorIs(t, w.Close(), os.ErrClosed)

	names, err = client.List()
	assert.NoError(t, err)
	assert.Equal(t, []string{"bpr/model.txt"}, names)
}

func TestPOSIX_Abort(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "blob")
	client := NewPOSIX(dir)

	// write the first version
	w, done, err := client.Create("model.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("first"))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, <-done)

	// abort the second version
	w, done, err = client.Create("model.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("second"))
	assert.NoError(t, err)
	Abort(w, errors.New("disk full"))
	assert.ErrorContains(t, <-done, "disk full")

	r, err := client.Open("model.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	assert.NoError(t, err)
	assert.Equal(t, "first", string(data))
	assert.NoError(t, r.Close())

	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}
