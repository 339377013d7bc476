package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Storage saves and deletes public assets such as avatars, project covers and
// product images.
type Storage interface {
	// Save stores the content under key (relative path, e.g. "avatars/file.jpg").
	// Returns a public URL for accessing the content.
	Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	IsLocal() bool
}

type LocalStorage struct {
	baseDir    string
	publicBase string
}

func NewLocalStorage(baseDir string) *LocalStorage {
	if baseDir == "" {
		baseDir = "uploads"
	}
	return &LocalStorage{baseDir: baseDir, publicBase: "/uploads"}
}

func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	dstPath, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return "", err
	}
	f, err := os.Create(dstPath)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return s.PublicURL(key), nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStorage) PublicURL(key string) string {
	key = strings.TrimPrefix(filepath.ToSlash(key), "/")
	return s.publicBase + "/" + key
}

func (s *LocalStorage) IsLocal() bool { return true }

// BaseDir is the directory served under /uploads.
func (s *LocalStorage) BaseDir() string { return s.baseDir }

// path resolves key inside baseDir, rejecting keys that escape it.
func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.ToSlash(key))
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

type S3Config struct {
	Endpoint       string
	AccessKey      string
	SecretKey      string
	UseSSL         bool
	Bucket         string
	ForcePathStyle bool
	PublicBaseURL  string
}

// NewStorage builds the configured backend. Provider "s3" or "r2" selects the
// S3-compatible client; anything else writes to the local uploads directory.
func NewStorage(cfg StorageConfig) (Storage, error) {
	if strings.EqualFold(cfg.Provider, "s3") || strings.EqualFold(cfg.Provider, "r2") {
		return NewS3Storage(S3Config{
			Endpoint:       cfg.S3Endpoint,
			AccessKey:      cfg.S3AccessKey,
			SecretKey:      cfg.S3SecretKey,
			UseSSL:         true,
			Bucket:         cfg.S3Bucket,
			ForcePathStyle: cfg.S3ForcePath,
			PublicBaseURL:  cfg.PublicBaseURL,
		})
	}
	return NewLocalStorage(cfg.Dir), nil
}

// StorageKeyFromURL maps a public URL produced by s back to its key, or "" if the
// URL does not belong to s.
func StorageKeyFromURL(s Storage, url string) string {
	prefix := strings.TrimSuffix(s.PublicURL(""), "/") + "/"
	if url == "" || !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

var mediaPrefixes = map[MediaKind]string{
	MediaAvatar:  "avatars",
	MediaCover:   "covers",
	MediaProduct: "products",
}

// MediaKey names a new object for an upload of kind, e.g. "covers/<uuid>.jpg".
func MediaKey(kind MediaKind, id uuid.UUID) string {
	prefix, ok := mediaPrefixes[kind]
	if !ok {
		prefix = "misc"
	}
	return prefix + "/" + id.String() + ".jpg"
}

// MediaKindOfKey reports which kind of media a key was built for.
func MediaKindOfKey(key string) (MediaKind, bool) {
	prefix, _, found := strings.Cut(strings.TrimPrefix(key, "/"), "/")
	if !found {
		return "", false
	}
	for kind, p := range mediaPrefixes {
		if p == prefix {
			return kind, true
		}
	}
	return "", false
}
