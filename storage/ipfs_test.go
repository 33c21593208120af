package storage

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testCID = "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"

// newIPFSFake serves the node API calls the backend makes.
func newIPFSFake(t *testing.T) (host, port string) {
	var mu sync.Mutex
	objects := map[string][]byte{}

	r := chi.NewRouter()
	r.Post("/api/v0/version", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"Version": "0.20.0", "Commit": "test"})
	})
	r.Post("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		reader, err := r.MultipartReader()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		part, err := reader.NextPart()
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(part)

		mu.Lock()
		objects[testCID] = data
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"Name": testCID, "Hash": testCID, "Size": "1"})
	})
	r.Post("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		cid := strings.TrimPrefix(r.URL.Query().Get("arg"), "/ipfs/")
		mu.Lock()
		data, ok := objects[cid]
		mu.Unlock()
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"Message": "block was not found locally (offline)", "Code": 0, "Type": "error"})
			return
		}
		_, _ = w.Write(data)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	host, port, err = net.SplitHostPort(u.Host)
	require.NoError(t, err)
	return host, port
}

func TestIPFSBackend(t *testing.T) {
	ctx := context.Background()
	host, port := newIPFSFake(t)

	backend, err := NewIPFSBackend(host, port, 5*time.Second, discardLogger())
	require.NoError(t, err)
	assert.True(t, backend.Available(ctx))
	assert.Equal(t, "ipfs-"+host+"-"+port, backend.Name())

	_, err = backend.Fetch(ctx, testCID)
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	location, err := backend.Store(ctx, "contract.wasm", []byte("wasm bytes"))
	require.NoError(t, err)
	assert.Equal(t, "ipfs://"+host+":"+port+"/"+testCID, location)

	data, err := backend.Fetch(ctx, "/ipfs/"+testCID)
	require.NoError(t, err)
	assert.Equal(t, "wasm bytes", string(data))
}

func TestIPFSBackend_Unavailable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, port, _ := net.SplitHostPort(listener.Addr().String())
	listener.Close()

	backend, err := NewIPFSBackend("127.0.0.1", port, time.Second, discardLogger())
	require.NoError(t, err)
	assert.False(t, backend.Available(context.Background()))

	_, err = backend.Fetch(context.Background(), testCID)
	assert.ErrorIs(t, err, interfaces.ErrBackendUnavailable)
}

func TestNewIPFSBackend_MissingHost(t *testing.T) {
	_, err := NewIPFSBackend("", "5001", time.Second, discardLogger())
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
