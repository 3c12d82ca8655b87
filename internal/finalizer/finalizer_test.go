package finalizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/coldvault/internal/logging"
	"github.com/dmitrijs2005/coldvault/internal/uploader"
)

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newOriginal(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(path, []byte("payload"), 0o600))
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestFinalize_ReplacesOriginalWithMarker(t *testing.T) {
	path := newOriginal(t)
	f := New(".archived", testLogger())

	out := f.Finalize(context.Background(), []uploader.Result{{Path: path, Success: true}})

	require.Len(t, out, 1)
	assert.True(t, out[0].Success)
	assert.False(t, exists(path), "original must be gone")

	info, err := os.Stat(path + ".archived")
	require.NoError(t, err)
	assert.Zero(t, info.Size(), "marker must be empty")
}

func TestFinalize_FailedUploadsPassThroughUntouched(t *testing.T) {
	path := newOriginal(t)
	f := New(".archived", testLogger())
	uploadErr := errors.New("upload failed")

	out := f.Finalize(context.Background(), []uploader.Result{{Path: path, Success: false, Err: uploadErr}})

	require.Len(t, out, 1)
	assert.False(t, out[0].Success)
	assert.Equal(t, uploadErr, out[0].Err)
	assert.True(t, exists(path), "original must be untouched")
	assert.False(t, exists(path+".archived"))
}

func TestFinalize_MarkerWriteFailureKeepsOriginal(t *testing.T) {
	path := newOriginal(t)
	orig := writeMarker
	writeMarker = func(string) error { return errors.New("share went away") }
	t.Cleanup(func() { writeMarker = orig })

	f := New(".archived", testLogger())
	out := f.Finalize(context.Background(), []uploader.Result{{Path: path, Success: true}})

	assert.False(t, out[0].Success)
	assert.ErrorContains(t, out[0].Err, "create marker")
	assert.True(t, exists(path))
	assert.False(t, exists(path+".archived"))
}

func TestFinalize_DeleteFailureRemovesMarker(t *testing.T) {
	path := newOriginal(t)

	orig := removeFile
	removeFile = func(name string) error {
		if name == path {
			return errors.New("sharing violation")
		}
		return orig(name)
	}
	t.Cleanup(func() { removeFile = orig })

	f := New(".archived", testLogger())
	out := f.Finalize(context.Background(), []uploader.Result{{Path: path, Success: true}})

	assert.False(t, out[0].Success)
	assert.ErrorContains(t, out[0].Err, "delete original")
	// Consistency: never a marker next to a surviving original.
	assert.True(t, exists(path))
	assert.False(t, exists(path+".archived"))
}

func TestFinalize_MarkerVerificationFailure(t *testing.T) {
	path := newOriginal(t)

	orig := statFile
	statFile = func(name string) (os.FileInfo, error) {
		if name == path+".archived" {
			return nil, os.ErrNotExist
		}
		return orig(name)
	}
	t.Cleanup(func() { statFile = orig })

	f := New(".archived", testLogger())
	out := f.Finalize(context.Background(), []uploader.Result{{Path: path, Success: true}})

	assert.False(t, out[0].Success)
	assert.ErrorContains(t, out[0].Err, "verify marker")
	assert.True(t, exists(path), "original must survive when the marker cannot be verified")
}

func TestFinalize_MixedBatch(t *testing.T) {
	good := newOriginal(t)
	bad := newOriginal(t)

	f := New(".archived", testLogger())
	out := f.Finalize(context.Background(), []uploader.Result{
		{Path: good, Success: true},
		{Path: bad, Success: false, Err: errors.New("nope")},
	})

	require.Len(t, out, 2)
	assert.True(t, out[0].Success)
	assert.False(t, out[1].Success)
	assert.False(t, exists(good))
	assert.True(t, exists(bad))
}
