package storagesvc

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/chuo/core"
)

func TestCleanKey(t *testing.T) {
	tests := []struct {
		key     string
		want    string
		wantErr bool
	}{
		{key: "materials/a/notes.pdf", want: "materials/a/notes.pdf"},
		{key: "materials//a/./notes.pdf", want: "materials/a/notes.pdf"},
		{key: "a/../b", want: "b"},
		{key: "", wantErr: true},
		{key: "/etc/passwd", wantErr: true},
		{key: "../secret", wantErr: true},
		{key: "a/../../secret", wantErr: true},
		{key: `a\b`, wantErr: true},
		{key: ".", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := cleanKey(tt.key)
			if tt.wantErr {
				assert.Equal(t, ErrInvalidKey, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(root, "files"))
	require.NoError(t, err)

	n, err := s.Save(ctx, "documents/2025/report.pdf", strings.NewReader("annual report"))
	require.NoError(t, err)
	assert.EqualValues(t, 13, n)

	rc, err := s.Open(ctx, "documents/2025/report.pdf")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	_ = rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "annual report", string(content))

	// no temp file is left behind
	entries, err := os.ReadDir(filepath.Join(root, "files", "documents", "2025"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	require.NoError(t, s.Delete(ctx, "documents/2025/report.pdf"))
	require.NoError(t, s.Delete(ctx, "documents/2025/report.pdf"))
	_, err = s.Open(ctx, "documents/2025/report.pdf")
	assert.True(t, core.IsNotFound(err), err)

	_, err = s.Save(ctx, "../escape.txt", strings.NewReader("x"))
	assert.Equal(t, ErrInvalidKey, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = s.Save(canceled, "late.txt", strings.NewReader("x"))
	assert.Error(t, err)
	_, err = s.Open(ctx, "late.txt")
	assert.True(t, core.IsNotFound(err), err)
}
