package storage

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/ruteri/commit-reveal-driver/interfaces"
)

const githubAPI = "https://api.github.com"

// GitHubBackend is a read-only backend over the GitHub contents API, used to
// pull contract binaries straight from a repository.
type GitHubBackend struct {
	owner       string
	repo        string
	prefix      string
	ref         string
	token       string
	apiBase     string
	client      *http.Client
	log         *slog.Logger
	locationURI string
}

// GitHubContent is a file entry returned by the contents API.
type GitHubContent struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"`
	DownloadURL string `json:"download_url"`
	SHA         string `json:"sha"`
	Size        int    `json:"size"`
}

// NewGitHubBackend creates a backend reading owner/repo at ref (default
// branch when empty). Names are resolved relative to prefix.
func NewGitHubBackend(owner, repo, prefix, ref, token string, log *slog.Logger) *GitHubBackend {
	uri := fmt.Sprintf("github://%s/%s/%s", owner, repo, strings.Trim(prefix, "/"))
	if ref != "" {
		uri += "?ref=" + url.QueryEscape(ref)
	}
	return &GitHubBackend{
		owner:       owner,
		repo:        repo,
		prefix:      strings.Trim(prefix, "/"),
		ref:         ref,
		token:       token,
		apiBase:     githubAPI,
		client:      &http.Client{Timeout: 30 * time.Second},
		log:         log,
		locationURI: uri,
	}
}

// Fetch retrieves the named file from the repository.
func (b *GitHubBackend) Fetch(ctx context.Context, name string) ([]byte, error) {
	filePath := path.Join(b.prefix, name)
	endpoint := fmt.Sprintf("%s/repos/%s/%s/contents/%s", b.apiBase, b.owner, b.repo, filePath)
	if b.ref != "" {
		endpoint += "?ref=" + url.QueryEscape(b.ref)
	}

	var content GitHubContent
	if err := b.getJSON(ctx, endpoint, &content); err != nil {
		return nil, err
	}
	if content.Type != "" && content.Type != "file" {
		return nil, fmt.Errorf("%s is a %s, not a file", filePath, content.Type)
	}

	var data []byte
	switch {
	case content.Encoding == "base64" && content.Content != "":
		var err error
		data, err = base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
		if err != nil {
			return nil, fmt.Errorf("failed to decode file content: %w", err)
		}
	case content.DownloadURL != "":
		// Files over 1MB come without inline content.
		raw, err := b.get(ctx, content.DownloadURL)
		if err != nil {
			return nil, err
		}
		data = raw
	default:
		return nil, fmt.Errorf("unexpected content encoding %q for %s", content.Encoding, filePath)
	}

	b.log.Debug("Fetched content from GitHub",
		slog.String("path", filePath),
		slog.String("sha", content.SHA),
		slog.Int("size", len(data)))

	return data, nil
}

// Store always fails; the backend is read-only.
func (b *GitHubBackend) Store(ctx context.Context, name string, data []byte) (string, error) {
	return "", fmt.Errorf("%w: %s", interfaces.ErrReadOnlyBackend, b.locationURI)
}

// Available checks if the repository can be read.
func (b *GitHubBackend) Available(ctx context.Context) bool {
	_, err := b.get(ctx, fmt.Sprintf("%s/repos/%s/%s", b.apiBase, b.owner, b.repo))
	if err != nil {
		b.log.Debug("GitHub backend unavailable", "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *GitHubBackend) Name() string {
	return fmt.Sprintf("github-%s-%s", b.owner, b.repo)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *GitHubBackend) LocationURI() string {
	return b.locationURI
}

func (b *GitHubBackend) getJSON(ctx context.Context, endpoint string, out any) error {
	body, err := b.get(ctx, endpoint)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode GitHub response: %w", err)
	}
	return nil
}

func (b *GitHubBackend) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if b.token != "" {
		req.Header.Set("Authorization", "Bearer "+b.token)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read GitHub response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, endpoint)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("GitHub API error: %s, %s", resp.Status, string(body))
	}
	return body, nil
}
