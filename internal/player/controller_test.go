// SPDX-License-Identifier: MIT

package player

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingCloser struct {
	io.Reader
	closes int
}

func (c *countingCloser) Close() error {
	c.closes++
	return nil
}

func TestStreamControllerCloseIsIdempotent(t *testing.T) {
	rc := &countingCloser{Reader: strings.NewReader("data")}
	c := NewStreamController("item-1", rc)

	assert.Equal(t, "item-1", c.ItemID())
	assert.Equal(t, SourceRangedStream, c.Kind())

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.Equal(t, 1, rc.closes)
}

func TestPauseResume(t *testing.T) {
	c := NewStreamController("item-1", io.NopCloser(strings.NewReader("")))

	assert.False(t, c.Paused())
	c.Pause()
	c.Pause()
	assert.True(t, c.Paused())
	c.Resume()
	assert.False(t, c.Paused())
}

func TestFileController(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("mp4"), 0o600))

	c, err := NewFileController("item-2", path)
	require.NoError(t, err)
	assert.Equal(t, SourceLocalFile, c.Kind())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err = NewFileController("item-3", filepath.Join(t.TempDir(), "missing.mp4"))
	assert.Error(t, err)
}
