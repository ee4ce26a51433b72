package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/videotube/backend/internal/apperr"
)

const multipartMemory = 1 << 20

// Uploads stages multipart files on local disk before they are handed to the
// media registrar.
type Uploads struct {
	Dir      string
	MaxBytes int64
}

// parse reads a multipart form bounded by MaxBytes.
func (u Uploads) parse(w http.ResponseWriter, r *http.Request) error {
	if u.MaxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, u.MaxBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.Validation("uploaded file is too large")
		case errors.Is(err, http.ErrNotMultipart):
			return apperr.Validation("expected multipart form data")
		default:
			return apperr.Validation("invalid multipart form")
		}
	}
	return nil
}

// stage copies the named form file into Dir and returns its path. A missing
// file yields an empty path and no error.
func (u Uploads) stage(r *http.Request, field string) (string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", apperr.Validation("invalid "+field+" file", field)
	}
	defer file.Close()

	if err := os.MkdirAll(u.Dir, 0o755); err != nil {
		return "", apperr.Internal("create upload directory", err)
	}

	dst, err := os.CreateTemp(u.Dir, field+"-*"+safeExt(header.Filename))
	if err != nil {
		return "", apperr.Internal("create upload file", err)
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		_ = os.Remove(dst.Name())
		return "", apperr.Internal("write upload file", fmt.Errorf("%s: %w", field, err))
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", apperr.Internal("close upload file", err)
	}
	return dst.Name(), nil
}

func cleanup(r *http.Request, paths ...string) {
	for _, p := range paths {
		if p != "" {
			_ = os.Remove(p)
		}
	}
	if r.MultipartForm != nil {
		_ = r.MultipartForm.RemoveAll()
	}
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) > 10 {
		return ""
	}
	for _, c := range ext[min(1, len(ext)):] {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return ""
		}
	}
	return ext
}
