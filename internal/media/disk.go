package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore saves media objects below a public directory that the HTTP server
// exposes under baseURL.
type DiskStore struct {
	root    string
	baseURL string
}

// NewDiskStore creates root if needed and returns a store writing into it.
func NewDiskStore(root, baseURL string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("disk store: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("disk store: create %s: %w", root, err)
	}
	return &DiskStore{root: root, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save copies r to root/key and returns baseURL/key.
func (d *DiskStore) Save(ctx context.Context, key, _ string, r io.Reader) (string, error) {
	key = filepath.ToSlash(filepath.Clean("/" + key))[1:]
	if key == "" {
		return "", fmt.Errorf("disk store: empty key")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dst := filepath.Join(d.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("disk store: create directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("disk store: create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("disk store: write %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("disk store: close %s: %w", key, err)
	}

	return d.baseURL + "/" + key, nil
}
