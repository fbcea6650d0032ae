package localstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, ok := s.Get(ctx, "missing")
	assert.False(t, ok)

	s.Set(ctx, "k", "v1")
	s.Set(ctx, "k", "v2")
	v, ok := s.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v2", v)

	s.Delete(ctx, "k")
	_, ok = s.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exercise(t, NewMemory())
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hooka.db")
	s, err := OpenSQLite(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	exercise(t, s)

	s.Set(context.Background(), "persist", "yes")
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(context.Background(), path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()
	v, ok := reopened.Get(context.Background(), "persist")
	assert.True(t, ok)
	assert.Equal(t, "yes", v)
}

func TestSQLiteSwallowsFailures(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	// A closed handle fails every statement; none of them may panic or surface.
	s.Set(context.Background(), "k", "v")
	s.Delete(context.Background(), "k")
	_, ok := s.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestOpenSQLiteErrors(t *testing.T) {
	_, err := OpenSQLite(context.Background(), "  ", zerolog.Nop())
	assert.Error(t, err)

	orig := openDB
	t.Cleanup(func() { openDB = orig })
	openDB = func(string, string) (*sql.DB, error) { return nil, errors.New("boom") }
	_, err = OpenSQLite(context.Background(), "x.db", zerolog.Nop())
	assert.ErrorContains(t, err, "boom")
}
