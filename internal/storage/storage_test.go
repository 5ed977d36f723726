package storage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/costbook/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestObjectKey(t *testing.T) {
	now := time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025/03/abc-front-view.png", ObjectKey(now, "abc", "Front View.PNG"))
	assert.Equal(t, "2025/03/abc-passwd", ObjectKey(now, "abc", "../../etc/passwd"))
	assert.Equal(t, "2025/03/abc-file", ObjectKey(now, "abc", ""))
	assert.Equal(t, "2025/03/abc-sketch", ObjectKey(now, "abc", "sketch.p$p"))
}

func TestLocalStoreUpload(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewFakeClock(time.Date(2025, 3, 7, 10, 0, 0, 0, time.UTC))
	store, err := NewLocalStore(dir, "https://cdn.example.com/files/", clk, zap.NewNop())
	require.NoError(t, err)

	url, err := store.Upload(context.Background(), Object{
		Name:        "swatch.jpg",
		ContentType: "image/jpeg",
		Body:        bytes.NewReader([]byte("jpeg-bytes")),
	})
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, "https://cdn.example.com/files/2025/03/"))
	assert.True(t, strings.HasSuffix(url, "-swatch.jpg"))

	key := strings.TrimPrefix(url, "https://cdn.example.com/files/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestLocalStoreUploadTwiceGivesDistinctURLs(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files", nil, nil)
	require.NoError(t, err)

	a, err := store.Upload(context.Background(), Object{Name: "a.png", Body: strings.NewReader("1")})
	require.NoError(t, err)
	b, err := store.Upload(context.Background(), Object{Name: "a.png", Body: strings.NewReader("1")})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocalStoreRejectsEmpty(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "/files", nil, nil)
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), Object{Name: "a.png"})
	assert.ErrorIs(t, err, ErrEmptyObject)

	_, err = store.Upload(context.Background(), Object{Name: "a.png", Body: strings.NewReader("")})
	assert.ErrorIs(t, err, ErrEmptyObject)
}
