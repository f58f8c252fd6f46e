// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cristian081496/ontario-directory-scraper/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "archive")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		assert.DirExists(t, dir)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestPutObject(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "run-1/members.csv", "text/csv", strings.NewReader("Company Name\nAcme\n"))
	require.NoError(t, err)
	want := filepath.Join(dir, "run-1", "members.csv")
	assert.Equal(t, "file://"+want, uri)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "Company Name\nAcme\n", string(data))

	_, err = store.PutObject(context.Background(), "../escape.csv", "", strings.NewReader("x"))
	require.Error(t, err)
	_, err = store.PutObject(context.Background(), "", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectRelativeBaseDir(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	store, err := local.New(local.Config{BaseDir: "."})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "run-1/members.csv", "text/csv", strings.NewReader("Company Name\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(uri, "file://"))
	assert.True(t, strings.HasSuffix(uri, filepath.Join("run-1", "members.csv")))

	data, err := os.ReadFile(filepath.Join(dir, "run-1", "members.csv"))
	require.NoError(t, err)
	assert.Equal(t, "Company Name\n", string(data))

	_, err = store.PutObject(context.Background(), "../escape.csv", "", strings.NewReader("x"))
	require.Error(t, err)
}
