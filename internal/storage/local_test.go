package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocal(t *testing.T) *LocalStorage {
	t.Helper()
	s, err := NewLocalStorage(LocalConfig{
		BasePath: t.TempDir(),
		BaseURL:  "http://localhost:8080/files/",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return s
}

func TestLocalStorage_PutGetRoundTrip(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	doc := `{"surveys":[{"id":"1","name":"Brand Recall"}]}`
	require.NoError(t, s.Put(ctx, DefaultCatalogKey, strings.NewReader(doc), PutOptions{}))

	rc, info, err := s.Get(ctx, DefaultCatalogKey)
	require.NoError(t, err)
	defer rc.Close()

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, doc, string(body))
	assert.Equal(t, int64(len(doc)), info.Size)
	assert.True(t, IsJSON(info.ContentType))
}

func TestLocalStorage_PutRespectsOverwrite(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "catalog/db.json", strings.NewReader("{}"), PutOptions{}))

	err := s.Put(ctx, "catalog/db.json", strings.NewReader("{}"), PutOptions{})
	assert.ErrorIs(t, err, ErrKeyExists)

	assert.NoError(t, s.Put(ctx, "catalog/db.json", strings.NewReader(`{"surveys":[]}`), PutOptions{Overwrite: true}))
}

func TestLocalStorage_PutRejectsOversized(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	err := s.Put(ctx, "catalog/db.json", strings.NewReader("0123456789"), PutOptions{MaxSize: 4})
	assert.ErrorIs(t, err, ErrTooLarge)

	exists, err := s.Exists(ctx, "catalog/db.json")
	require.NoError(t, err)
	assert.False(t, exists, "oversized document must not be left behind")
}

func TestLocalStorage_GetMissing(t *testing.T) {
	s := newTestLocal(t)

	_, _, err := s.Get(context.Background(), "catalog/missing.json")
	assert.True(t, IsNotFound(err))
}

func TestLocalStorage_RejectsTraversal(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	for _, key := range []string{"", "../etc/passwd", "catalog/../../x", "/abs/path"} {
		_, err := s.Exists(ctx, key)
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestLocalStorage_DeleteIsIdempotent(t *testing.T) {
	s := newTestLocal(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "catalog/db.json", strings.NewReader("{}"), PutOptions{}))
	require.NoError(t, s.Delete(ctx, "catalog/db.json"))
	assert.NoError(t, s.Delete(ctx, "catalog/db.json"))
}

func TestLocalStorage_URL(t *testing.T) {
	s := newTestLocal(t)

	url, err := s.URL(context.Background(), "catalog/db.json", 0)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/catalog/db.json", url)
}

func TestCatalogKey(t *testing.T) {
	assert.Equal(t, "catalog/db.json", CatalogKey(""))
	assert.Equal(t, "staging/db.json", CatalogKey("/staging/"))
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(&StorageError{Op: "Get", Key: "catalog/db.json", Err: ErrNotFound}))
	assert.True(t, IsPermanent(ErrAccessDenied))
	assert.True(t, IsPermanent(ErrInvalidKey))
	assert.False(t, IsPermanent(ErrTooLarge))
	assert.False(t, IsPermanent(errors.New("connection reset")))
}
