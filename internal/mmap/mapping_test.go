package mmap

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mapping.bin")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestOpen(t *testing.T) {
	payload := []byte("sidecar array payload")
	m, err := Open(writeTempFile(t, payload))
	require.NoError(t, err)

	assert.Equal(t, payload, m.Bytes())
	assert.Equal(t, len(payload), m.Size())
	require.NoError(t, m.Close())

	// Idempotent close, and Bytes after close is nil.
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())
}

func TestOpenEmptyFile(t *testing.T) {
	m, err := Open(writeTempFile(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 0, m.Size())
	assert.Empty(t, m.Bytes())
	require.NoError(t, m.Close())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

func TestRegion(t *testing.T) {
	m, err := Open(writeTempFile(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	r, err := m.Region(2, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("23456"), r.Bytes())

	_, err = m.Region(8, 5)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = m.Region(-1, 2)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestReadAt(t *testing.T) {
	m, err := Open(writeTempFile(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte("3456"), buf)
}

func TestAdvise(t *testing.T) {
	m, err := Open(writeTempFile(t, make([]byte, 8192)))
	require.NoError(t, err)
	defer m.Close()

	assert.NoError(t, m.Advise(AccessSequential))
	assert.NoError(t, m.Advise(AccessRandom))
}
