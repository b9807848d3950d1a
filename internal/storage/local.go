package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"assetbook/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	PrefixReceived = "bookings/received"
	PrefixReturned = "bookings/returned"
	PrefixAssets   = "assets"
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

var (
	ErrUnsupportedType = domain.Validation("unsupported image type")
	ErrTooLarge        = domain.Validation("image is too large")
	ErrEmptyFile       = domain.Validation("image is empty")
)

// LocalStore keeps images on the local filesystem under root.
type LocalStore struct {
	root    string
	maxSize int64
	logger  *zerolog.Logger
}

func NewLocalStore(root string, maxSizeMB int64, logger *zerolog.Logger) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &LocalStore{root: root, maxSize: maxSizeMB << 20, logger: logger}, nil
}

// Save streams r to <prefix>/<uuid>.<ext> and returns the key.
func (s *LocalStore) Save(ctx context.Context, prefix, filename, contentType string, r io.Reader) (string, error) {
	ext, err := extensionFor(filename, contentType)
	if err != nil {
		return "", err
	}

	key := path.Join(prefix, uuid.NewString()+ext)
	full, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, io.LimitReader(r, s.maxSize+1))
	closeErr := tmp.Close()
	if err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}
	if closeErr != nil {
		return "", fmt.Errorf("close image: %w", closeErr)
	}
	if n == 0 {
		return "", ErrEmptyFile
	}
	if n > s.maxSize {
		return "", ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return "", fmt.Errorf("store image: %w", err)
	}

	s.logger.Debug().Str("key", key).Int64("bytes", n).Msg("image stored")
	return key, nil
}

// Open returns the stored image and its content type.
func (s *LocalStore) Open(key string) (io.ReadCloser, string, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, "", err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", domain.NotFound("image not found")
		}
		return nil, "", err
	}
	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return f, contentType, nil
}

// Delete removes a stored image. A missing file is not an error.
func (s *LocalStore) Delete(key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}

func (s *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", domain.NotFound("image not found")
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func extensionFor(filename, contentType string) (string, error) {
	ct, _, _ := mime.ParseMediaType(contentType)
	if ext, ok := allowedTypes[ct]; ok {
		return ext, nil
	}
	// клиенты часто шлют application/octet-stream, смотрим на расширение
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for _, allowed := range allowedTypes {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", ErrUnsupportedType
}
