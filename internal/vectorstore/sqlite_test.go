package vectorstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/config"
	"github.com/xxxsen/docrag/internal/model"
)

func configFor(kind string, data interface{}) config.VectorStoreConfig {
	return config.VectorStoreConfig{Type: kind, Data: data}
}

func TestSQLiteStoreContract(t *testing.T) {
	store, err := OpenSQLiteStore(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	runStoreContract(t, store)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chunks.db")
	scope := model.Scope{UserID: "u1", ProjectID: "p1"}

	store, err := New(configFor("sqlite", map[string]interface{}{"path": path}), Options{})
	require.NoError(t, err)
	insertAll(t, store, scope, map[string][]float32{"kept": axisVector(1)}, "kept")
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()
	hits, err := reopened.QueryNearest(context.Background(), axisVector(1), scope, 5, 0.3)
	require.NoError(t, err)
	require.Equal(t, []string{"kept"}, contents(hits))
}
