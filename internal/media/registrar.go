// Package media uploads user-supplied assets and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/videotube/backend/internal/logging"
)

// Store persists an object under key and returns where it can be fetched.
type Store interface {
	Save(ctx context.Context, key, contentType string, r io.Reader) (string, error)
}

// Registrar turns local temporary files into published media. The local file
// is removed after every attempt, successful or not.
type Registrar struct {
	store  Store
	prefix string
	newKey func() string
}

// NewRegistrar wraps store. Keys are generated under prefix.
func NewRegistrar(store Store, prefix string) *Registrar {
	if store == nil {
		panic("media: store must not be nil")
	}
	return &Registrar{
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		newKey: uuid.NewString,
	}
}

// Upload publishes the file at localPath and returns its public URL.
func (r *Registrar) Upload(ctx context.Context, localPath string) (url string, err error) {
	if strings.TrimSpace(localPath) == "" {
		return "", errors.New("media: local path is required")
	}

	logger := logging.FromContext(ctx)
	defer func() {
		if rmErr := os.Remove(localPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			logger.Warn("remove temporary upload", slog.String("path", localPath), slog.Any("error", rmErr))
		}
	}()

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("media: open %s: %w", localPath, err)
	}
	defer f.Close()

	ext := strings.ToLower(filepath.Ext(localPath))
	key := r.newKey() + ext
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}

	url, err = r.store.Save(ctx, key, mime.TypeByExtension(ext), f)
	if err != nil {
		return "", err
	}

	logger.Info("media uploaded", slog.String("key", key))
	return url, nil
}
