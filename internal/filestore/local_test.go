package filestore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xxxsen/docrag/internal/config"
	appErr "github.com/xxxsen/docrag/internal/pkg/errors"
)

func TestLocalStore_SaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir(), "")

	payload := []byte("RIFF....WAVE")
	require.NoError(t, store.Save(ctx, "audio_1.wav", bytes.NewReader(payload), int64(len(payload)), "audio/wav"))

	rc, err := store.Open(ctx, "audio_1.wav")
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, payload, got)

	require.NoError(t, store.Delete(ctx, "audio_1.wav"))
	_, err = store.Open(ctx, "audio_1.wav")
	assert.ErrorIs(t, err, appErr.ErrNotFound)
	// deleting twice is fine
	assert.NoError(t, store.Delete(ctx, "audio_1.wav"))
}

func TestLocalStore_RejectsBadKeys(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir(), "")
	for _, key := range []string{"", "../escape.wav", "a/b.wav", `a\b.wav`, ".hidden"} {
		err := store.Save(ctx, key, bytes.NewReader(nil), 0, "")
		assert.ErrorIs(t, err, appErr.ErrInvalid, key)
		_, err = store.Open(ctx, key)
		assert.ErrorIs(t, err, appErr.ErrInvalid, key)
	}
}

func TestLocalStore_URL(t *testing.T) {
	assert.Equal(t, "http://host:8080/api/v1/files/a.wav", NewLocalStore("x", "").URL("a.wav", "http://host:8080/"))
	assert.Equal(t, "https://cdn.example.com/a.wav", NewLocalStore("x", "https://cdn.example.com/").URL("a.wav", "http://host"))
}

func TestNew(t *testing.T) {
	store, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": t.TempDir()}})
	require.NoError(t, err)
	assert.Equal(t, "local", store.Type())

	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	assert.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "ftp"})
	assert.Error(t, err)
	_, err = New(config.FileStoreConfig{})
	assert.Error(t, err)
}
