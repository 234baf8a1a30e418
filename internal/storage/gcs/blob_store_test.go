package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, handler http.Handler) *storage.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := storage.NewClient(context.Background(),
		option.WithEndpoint(server.URL),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, Config{Bucket: "b"})
	assert.Error(t, err)

	client := newTestClient(t, http.NotFoundHandler())
	_, err = New(client, Config{})
	assert.Error(t, err)
}

func TestBlobStore_PutObject(t *testing.T) {
	body := []byte(`{"metadata":{"success":true},"data":[]}`)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/archive-bucket/o")
		assert.Equal(t, "apollo/apollo-data-1.json", r.URL.Query().Get("name"))

		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(raw), string(body))
		assert.Contains(t, string(raw), "application/json")

		fmt.Fprintln(w, `{"name":"apollo/apollo-data-1.json","bucket":"archive-bucket"}`)
	})

	store, err := New(newTestClient(t, handler), Config{Bucket: "archive-bucket", Prefix: "/apollo/"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "apollo-data-1.json", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	assert.Equal(t, "gs://archive-bucket/apollo/apollo-data-1.json", uri)
}

func TestBlobStore_PutObjectServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	store, err := New(newTestClient(t, handler), Config{Bucket: "archive-bucket"})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "errors/x.json", "application/json", bytes.NewReader([]byte("{}")))
	assert.Error(t, err)

	_, err = store.PutObject(context.Background(), "", "application/json", bytes.NewReader(nil))
	assert.Error(t, err)
}
