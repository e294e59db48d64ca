package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte("content")
	uri, err := store.PutObject(context.Background(), "runs/abc/summary.json", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://runs/abc/summary.json", uri)

	payload[0] = 'C'
	stored, contentType, ok := store.Object("runs/abc/summary.json")
	require.True(t, ok)
	require.Equal(t, "content", string(stored))
	require.Equal(t, "application/json", contentType)

	stored[0] = 'X'
	again, _, _ := store.Object("runs/abc/summary.json")
	require.Equal(t, "content", string(again))
}

func TestBlobStorePaths(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	for _, p := range []string{"b", "a", "c"} {
		_, err := store.PutObject(context.Background(), p, "", bytes.NewReader(nil))
		require.NoError(t, err)
	}
	require.Equal(t, []string{"a", "b", "c"}, store.Paths())

	_, err := store.PutObject(context.Background(), " ", "", bytes.NewReader(nil))
	require.Error(t, err)
	_, _, ok := store.Object("missing")
	require.False(t, ok)
}
