//go:build integration

package storage

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/pbparthas/enki/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3Client(t *testing.T) {
	ctx := context.Background()
	rc := testutil.NewRustFSContainer(ctx, t)
	defer rc.Terminate(ctx)

	client, err := NewS3Client(ctx, S3ClientConfig{
		Endpoint:        rc.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     "rustfsadmin",
		SecretAccessKey: "rustfsadmin",
		Bucket:          "enki-snapshots",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	t.Run("ensure bucket is idempotent", func(t *testing.T) {
		require.NoError(t, client.EnsureBucket(ctx))
		require.NoError(t, client.EnsureBucket(ctx))
	})

	t.Run("uploads and presigns a snapshot", func(t *testing.T) {
		body := []byte(`{"items":[],"item_count":0}`)
		key := "snapshots/2026-01-01T00-00-00Z.json"
		require.NoError(t, client.PutObject(ctx, key, "application/json", body))

		url, err := client.GenerateDownloadURL(ctx, key)
		require.NoError(t, err)
		assert.True(t, strings.Contains(url, key))

		resp, err := http.Get(url)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		downloaded, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, body, downloaded)
	})
}
