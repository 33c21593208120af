package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubFake(t *testing.T, wasm []byte) *httptest.Server {
	r := chi.NewRouter()
	var srvURL string

	r.Get("/repos/near/contracts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"full_name": "near/contracts"})
	})
	r.Get("/repos/near/contracts/contents/build/small.wasm", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("ref") != "main" || r.Header.Get("Authorization") != "Bearer ghp_test" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		encoded := base64.StdEncoding.EncodeToString(wasm)
		_ = json.NewEncoder(w).Encode(GitHubContent{
			Type:     "file",
			Encoding: "base64",
			// The API wraps inline content at 60 characters.
			Content: encoded[:2] + "\n" + encoded[2:],
			SHA:     "abc",
			Size:    len(wasm),
		})
	})
	r.Get("/repos/near/contracts/contents/build/large.wasm", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GitHubContent{
			Type:        "file",
			Encoding:    "none",
			DownloadURL: srvURL + "/raw/large.wasm",
		})
	})
	r.Get("/repos/near/contracts/contents/build", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(GitHubContent{Type: "dir"})
	})
	r.Get("/raw/large.wasm", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(wasm)
	})

	srv := httptest.NewServer(r)
	srvURL = srv.URL
	t.Cleanup(srv.Close)
	return srv
}

func TestGitHubBackend(t *testing.T) {
	ctx := context.Background()
	wasm := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	srv := newGitHubFake(t, wasm)

	backend := NewGitHubBackend("near", "contracts", "build", "main", "ghp_test", discardLogger())
	backend.apiBase = srv.URL

	assert.Equal(t, "github://near/contracts/build?ref=main", backend.LocationURI())
	assert.True(t, backend.Available(ctx))

	data, err := backend.Fetch(ctx, "small.wasm")
	require.NoError(t, err)
	assert.Equal(t, wasm, data)

	data, err = backend.Fetch(ctx, "large.wasm")
	require.NoError(t, err)
	assert.Equal(t, wasm, data)

	_, err = backend.Fetch(ctx, "missing.wasm")
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	_, err = backend.Store(ctx, "small.wasm", wasm)
	assert.ErrorIs(t, err, interfaces.ErrReadOnlyBackend)
}

func TestGitHubBackend_Directory(t *testing.T) {
	srv := newGitHubFake(t, nil)

	backend := NewGitHubBackend("near", "contracts", "", "", "", discardLogger())
	backend.apiBase = srv.URL

	_, err := backend.Fetch(context.Background(), "build")
	assert.ErrorContains(t, err, "is a dir")
}

func TestGitHubBackend_Unavailable(t *testing.T) {
	srv := newGitHubFake(t, nil)

	backend := NewGitHubBackend("someone", "else", "", "", "", discardLogger())
	backend.apiBase = srv.URL
	assert.False(t, backend.Available(context.Background()))
}
