package core

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// FileStorage stores uploaded files (study materials, application documents, public reports).
type FileStorage interface {
	// Save stores the content of r under key and returns the number of bytes written.
	Save(ctx context.Context, key string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Upload describes a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// NewStorageKey returns a unique key under prefix keeping the extension of filename.
func NewStorageKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(filename, "\\", "/"))))
	return path.Join(prefix, uuid.New().String()+ext)
}

// CleanFilename drops any directory part a client may have sent along with a filename.
func CleanFilename(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" {
		return ""
	}
	return name
}
