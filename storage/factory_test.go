package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageBackendFor(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger(), Credentials{VaultToken: "root", GitHubToken: "ghp"})

	tests := []struct {
		uri          string
		expectedType any
		expectedName string
		wantErr      bool
	}{
		{uri: "file:///tmp/reports", expectedType: &FileBackend{}, expectedName: "file-reports"},
		{uri: "./out", expectedType: &FileBackend{}, expectedName: "file-out"},
		{uri: "s3://AK:SK@bucket/prefix?region=eu-west-1&endpoint=http://localhost:9000", expectedType: &S3Backend{}},
		{uri: "s3:///prefix", wantErr: true},
		{uri: "ipfs://localhost:5001/?timeout=5s", expectedType: &IPFSBackend{}},
		{uri: "ipfs://localhost/?timeout=soon", wantErr: true},
		{uri: "vault://vault:8200/secret/near?tls=false", expectedType: &VaultBackend{}, expectedName: "vault-secret-near"},
		{uri: "vault://vault:8200/", wantErr: true},
		{uri: "github://near/contracts/build?ref=main", expectedType: &GitHubBackend{}, expectedName: "github-near-contracts"},
		{uri: "github://near", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			loc, err := interfaces.NewStorageBackendLocation(tt.uri)
			require.NoError(t, err)

			backend, err := factory.StorageBackendFor(loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.expectedType, backend)
			if tt.expectedName != "" {
				assert.Equal(t, tt.expectedName, backend.Name())
			}
		})
	}
}

func TestStorageBackendFor_GitHubLocation(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger(), Credentials{})
	loc, err := interfaces.NewStorageBackendLocation("github://near/contracts/build/wasm?ref=v1")
	require.NoError(t, err)

	backend, err := factory.StorageBackendFor(loc)
	require.NoError(t, err)

	gh := backend.(*GitHubBackend)
	assert.Equal(t, "near", gh.owner)
	assert.Equal(t, "contracts", gh.repo)
	assert.Equal(t, "build/wasm", gh.prefix)
	assert.Equal(t, "v1", gh.ref)
}

func TestStorageBackendFor_VaultTokenFromURI(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger(), Credentials{VaultToken: "from-env"})
	loc, err := interfaces.NewStorageBackendLocation("vault://override@vault:8200/secret/near?tls=false")
	require.NoError(t, err)

	backend, err := factory.StorageBackendFor(loc)
	require.NoError(t, err)
	assert.Equal(t, "override", backend.(*VaultBackend).client.Token())
	assert.Equal(t, "vault://vault:8200/secret/near", backend.LocationURI())
}

func TestCreateMultiBackend(t *testing.T) {
	factory := NewStorageBackendFactory(discardLogger(), Credentials{})

	good, err := interfaces.NewStorageBackendLocation(t.TempDir())
	require.NoError(t, err)
	bad, err := interfaces.NewStorageBackendLocation("github://only-owner")
	require.NoError(t, err)

	backend, err := factory.CreateMultiBackend([]interfaces.StorageBackendLocation{good, bad})
	require.NoError(t, err)
	assert.IsType(t, &MultiStorageBackend{}, backend)

	_, err = factory.CreateMultiBackend([]interfaces.StorageBackendLocation{bad})
	assert.Error(t, err)
}

func TestFetchURI(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contract.wasm"), []byte{0x00, 0x61, 0x73, 0x6d}, 0644))

	factory := NewStorageBackendFactory(discardLogger(), Credentials{})

	data, err := factory.FetchURI(context.Background(), "file://"+filepath.Join(dir, "contract.wasm"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x61, 0x73, 0x6d}, data)

	data, err = factory.FetchURI(context.Background(), filepath.Join(dir, "contract.wasm"))
	require.NoError(t, err)
	assert.Len(t, data, 4)

	_, err = factory.FetchURI(context.Background(), filepath.Join(dir, "missing.wasm"))
	assert.ErrorIs(t, err, interfaces.ErrContentNotFound)

	_, err = factory.FetchURI(context.Background(), "ftp://host/file")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)

	_, err = factory.FetchURI(context.Background(), "file:///tmp/dir/")
	assert.ErrorIs(t, err, interfaces.ErrInvalidLocationURI)
}
