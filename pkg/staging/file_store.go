package staging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// FileStore はローカルディレクトリにステージングファイルを置きます。
type FileStore struct {
	dir    string
	reader remoteio.InputReader
}

// NewFileStore は dir をルートとする FileStore を初期化します。dir が空なら os.TempDir を使います。
func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = os.TempDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("staging: resolve dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o700); err != nil {
		return nil, fmt.Errorf("staging: ensure dir: %w", err)
	}
	return &FileStore{dir: abs, reader: remoteio.NewUniversalInputReader(nil, nil)}, nil
}

// Dir はステージング先ディレクトリを返します。
func (s *FileStore) Dir() string { return s.dir }

// Stage は隠し一時ファイルに全量を書いてから最終名へ rename します。
// 返したハンドルを開いた読み手は必ず完全な内容を見ます。
func (s *FileStore) Stage(ctx context.Context, data []byte, ext string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", ioFailure("stage", err)
	}
	name, err := objectName(ext)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return "", ioFailure("stage", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", ioFailure("stage", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", ioFailure("stage", err)
	}
	if err := tmp.Close(); err != nil {
		return "", ioFailure("stage", err)
	}

	final := filepath.Join(s.dir, name)
	if err := os.Rename(tmpPath, final); err != nil {
		return "", ioFailure("stage", err)
	}
	committed = true
	return final, nil
}

// Open はハンドル（絶対パス）を開きます。ステージング先の外を指すハンドルは拒否します。
func (s *FileStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	path, err := s.resolve(handle)
	if err != nil {
		return nil, err
	}
	rc, err := s.reader.Open(ctx, path)
	if err != nil {
		return nil, ioFailure("open", err)
	}
	return rc, nil
}

// Remove はハンドルを削除します。
func (s *FileStore) Remove(ctx context.Context, handle string) error {
	path, err := s.resolve(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioFailure("remove", err)
	}
	return nil
}

func (s *FileStore) resolve(handle string) (string, error) {
	clean := filepath.Clean(handle)
	if filepath.Dir(clean) != s.dir {
		return "", ioFailure("resolve", fmt.Errorf("handle %q is outside staging dir", handle))
	}
	return clean, nil
}
