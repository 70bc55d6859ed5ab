package storagesvc

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/chuo/core"
)

var ErrInvalidKey = errors.New("invalid storage key")

// cleanKey rejects keys that are empty, absolute or escape the storage root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

type localStorage struct {
	root string
}

var _ core.FileStorage = (*localStorage)(nil)

func NewLocalStorage(root string) (*localStorage, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating storage root")
	}
	return &localStorage{root: root}, nil
}

func (s *localStorage) path(key string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Save writes to a temporary file first so a failed upload never leaves a partial file under key.
func (s *localStorage) Save(ctx context.Context, key string, r io.Reader) (int64, error) {
	fp, err := s.path(key)
	if err != nil {
		return 0, err
	}
	if err = os.MkdirAll(filepath.Dir(fp), 0o750); err != nil {
		return 0, errors.Wrap(err, "creating dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(fp), ".upload-*")
	if err != nil {
		return 0, errors.Wrap(err, "creating temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, readerWithContext{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, errors.Wrap(err, "writing file")
	}
	return n, errors.Wrap(os.Rename(tmp.Name(), fp), "moving file")
}

func (s *localStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	fp, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fp)
	if os.IsNotExist(err) {
		return nil, core.NewNotFoundError("file not found")
	}
	return f, errors.Wrap(err, "opening file")
}

// Delete is a no-op for missing files.
func (s *localStorage) Delete(_ context.Context, key string) error {
	fp, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// readerWithContext stops reading once ctx is done.
type readerWithContext struct {
	ctx context.Context
	r   io.Reader
}

func (rc readerWithContext) Read(p []byte) (int, error) {
	if err := rc.ctx.Err(); err != nil {
		return 0, err
	}
	return rc.r.Read(p)
}
