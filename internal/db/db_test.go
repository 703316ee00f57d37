package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSettingsRoundTrip(t *testing.T) {
	db := newTestDB(t)

	v, err := db.GetSetting(KeyToken)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetSetting(KeyToken, "abc"))
	require.NoError(t, db.SetSetting(KeyToken, "def"))
	v, err = db.GetSetting(KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "def", v)
}

func TestDeleteSettings(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetSetting(KeyToken, "abc"))
	require.NoError(t, db.SetSetting(KeyCurrentUser, `{"id":1}`))
	require.NoError(t, db.SetSetting(KeyLastScreen, "tasks"))

	require.NoError(t, db.DeleteSettings(KeyToken, KeyCurrentUser))

	for _, k := range []string{KeyToken, KeyCurrentUser} {
		v, err := db.GetSetting(k)
		require.NoError(t, err)
		assert.Empty(t, v, k)
	}
	v, err := db.GetSetting(KeyLastScreen)
	require.NoError(t, err)
	assert.Equal(t, "tasks", v)
}

func TestBoolSetting(t *testing.T) {
	db := newTestDB(t)

	collapsed, err := db.GetBool(KeySidebarCollapsed)
	require.NoError(t, err)
	assert.False(t, collapsed)

	require.NoError(t, db.SetBool(KeySidebarCollapsed, true))
	collapsed, err = db.GetBool(KeySidebarCollapsed)
	require.NoError(t, err)
	assert.True(t, collapsed)
}

func TestReopenKeepsSettings(t *testing.T) {
	dir := t.TempDir()
	db, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, db.SetSetting(KeyLastScreen, "projects"))
	require.NoError(t, db.Close())

	db, err = New(dir)
	require.NoError(t, err)
	defer db.Close()
	v, err := db.GetSetting(KeyLastScreen)
	require.NoError(t, err)
	assert.Equal(t, "projects", v)
}
