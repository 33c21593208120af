package interfaces

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// StorageBackendLocation represents URI for storage backend.
type StorageBackendLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStorageBackendLocation creates a new storage location from a URI string
// with validation. A bare filesystem path is treated as a file:// URI.
func NewStorageBackendLocation(uri string) (StorageBackendLocation, error) {
	if !strings.Contains(uri, "://") {
		if strings.HasPrefix(uri, "/") {
			uri = "file://" + uri
		} else {
			uri = "file://./" + strings.TrimPrefix(uri, "./")
		}
	}

	parsed, err := url.Parse(uri)
	if err != nil {
		return StorageBackendLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	switch scheme {
	case "file", "s3", "ipfs", "github", "vault":
	default:
		return StorageBackendLocation{}, fmt.Errorf("%w: unsupported storage scheme: %s", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StorageBackendLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StorageBackendLocation) String() string {
	return loc.Raw
}

// Split separates an object location into the location of its parent
// collection and the object name within it.
func (loc StorageBackendLocation) Split() (StorageBackendLocation, string, error) {
	u, err := url.Parse(loc.Raw)
	if err != nil {
		return StorageBackendLocation{}, "", fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	dir, name := path.Split(u.Path)
	if name == "" {
		return StorageBackendLocation{}, "", fmt.Errorf("%w: no object name in %s", ErrInvalidLocationURI, loc.Raw)
	}
	u.Path = dir
	u.RawPath = ""

	parent, err := NewStorageBackendLocation(u.String())
	if err != nil {
		return StorageBackendLocation{}, "", err
	}
	return parent, name, nil
}

// GetParam returns a query parameter value.
func (loc StorageBackendLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StorageBackendLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// StorageBackend stores named artifacts: contract binaries, secrets and run reports.
type StorageBackend interface {
	// Fetch retrieves an object by name.
	Fetch(ctx context.Context, name string) ([]byte, error)

	// Store saves an object and returns the location it can be fetched from.
	Store(ctx context.Context, name string, data []byte) (string, error)

	// Available checks if backend is accessible.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string

	// LocationURI returns URI identifying this backend.
	LocationURI() string
}

// StorageBackendFactory creates storage backends.
type StorageBackendFactory interface {
	// StorageBackendFor creates backend from URI.
	// Supports file://, s3://, ipfs://, github://, vault://
	StorageBackendFor(location StorageBackendLocation) (StorageBackend, error)

	// CreateMultiBackend creates aggregated storage backend.
	CreateMultiBackend(locations []StorageBackendLocation) (StorageBackend, error)

	// FetchURI fetches a single object addressed by a full URI.
	FetchURI(ctx context.Context, uri string) ([]byte, error)
}
