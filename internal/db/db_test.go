package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	d, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, d.Close()) })

	var tableName string
	err = d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='client_storage'").Scan(&tableName)
	require.NoError(t, err)
	assert.Equal(t, "client_storage", tableName)
}

func TestOpenForTestingIsolated(t *testing.T) {
	a, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	_, err = a.Exec("INSERT INTO client_storage (session_id, key, value) VALUES ('s', 'k', 'v')")
	require.NoError(t, err)

	var n int
	require.NoError(t, b.QueryRow("SELECT COUNT(*) FROM client_storage").Scan(&n))
	assert.Zero(t, n)
}

func TestOpenFileReappliesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drakdex.db")

	first, err := Open(path)
	require.NoError(t, err)
	_, err = first.Exec("INSERT INTO client_storage (session_id, key, value) VALUES ('s', 'k', 'v')")
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	var value string
	require.NoError(t, second.QueryRow("SELECT value FROM client_storage WHERE session_id = 's'").Scan(&value))
	assert.Equal(t, "v", value)
}
