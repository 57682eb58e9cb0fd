package cart

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newRepository(t *testing.T) *Repository {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "cart.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo, err := NewRepository(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func TestRepository_SaveLoad(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	s := New()
	_, _ = s.Add(jam)
	_, _ = s.Add(milk)
	_, _ = s.Add(jam)

	require.NoError(t, repo.Save(ctx, "session-a", s.Lines()))

	lines, err := repo.Load(ctx, "session-a")
	require.NoError(t, err)
	assert.Equal(t, []string{"333", "111"}, codes(lines))
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "Jam", lines[0].Product.ProductName)

	restored := New()
	restored.Restore(lines)
	assert.Equal(t, 3, restored.Total())
}

func TestRepository_SaveReplacesAndIsolatesSessions(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "a", []Line{{Product: milk, Quantity: 1}, {Product: bread, Quantity: 2}}))
	require.NoError(t, repo.Save(ctx, "b", []Line{{Product: jam, Quantity: 7}}))
	require.NoError(t, repo.Save(ctx, "a", []Line{{Product: bread, Quantity: 1}}))

	lines, err := repo.Load(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"222"}, codes(lines))

	lines, err = repo.Load(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"333"}, codes(lines))

	require.NoError(t, repo.Delete(ctx, "b"))
	lines, err = repo.Load(ctx, "b")
	require.NoError(t, err)
	assert.Empty(t, lines)
}
