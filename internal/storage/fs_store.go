package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// NewStore 以 basePath 为根目录构建磁盘存储，整个进程复用一份实例。
func NewStore(basePath string) (Store, error) {
	if basePath == "" {
		return nil, errors.New("storage path required")
	}

	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage path: %w", err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage path: %w", err)
	}

	return &fileStore{
		basePath: abs,
		locks:    NewKeyedLocker(),
	}, nil
}

// fileStore 通过 KeyedLocker 避免同一路径并发写入。
type fileStore struct {
	basePath string
	locks    *KeyedLocker
}

func (s *fileStore) Root() string {
	return s.basePath
}

func (s *fileStore) EnsureDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.managedPath(dir)
	if err != nil {
		return err
	}

	err = os.MkdirAll(target, 0o755)
	if err == nil {
		return nil
	}
	// 另一调用方可能刚好完成创建：只要最终是目录即视为成功。
	if info, statErr := os.Stat(target); statErr == nil && info.IsDir() {
		return nil
	}
	return err
}

func (s *fileStore) WriteFile(ctx context.Context, filePath string, body io.Reader, opts PutOptions) (*Entry, error) {
	target, err := s.managedPath(filePath)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(target)
	defer unlock()

	dir := filepath.Dir(target)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is not a directory", dir)
		}
		return nil, err
	}

	tempFile, err := os.CreateTemp(dir, ".font-*")
	if err != nil {
		return nil, err
	}
	tempName := tempFile.Name()

	written, err := copyWithContext(ctx, tempFile, body)
	if err == nil {
		err = tempFile.Sync()
	}
	closeErr := tempFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tempName)
		return nil, err
	}

	if err := os.Chmod(tempName, 0o644); err != nil {
		os.Remove(tempName)
		return nil, err
	}
	if err := os.Rename(tempName, target); err != nil {
		os.Remove(tempName)
		return nil, err
	}

	modTime := opts.ModTime
	if modTime.IsZero() {
		modTime = time.Now().UTC()
	}
	if err := os.Chtimes(target, modTime, modTime); err != nil {
		return nil, err
	}

	return &Entry{
		FilePath:  target,
		SizeBytes: written,
		ModTime:   modTime,
	}, nil
}

func (s *fileStore) Open(ctx context.Context, filePath string) (*ReadResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry, err := s.Stat(filePath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(entry.FilePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &ReadResult{
		Entry:  *entry,
		Reader: f,
	}, nil
}

func (s *fileStore) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	result, err := s.Open(ctx, filePath)
	if err != nil {
		return nil, err
	}
	defer result.Reader.Close()
	return io.ReadAll(result.Reader)
}

func (s *fileStore) Stat(filePath string) (*Entry, error) {
	target, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrNotFound
	}
	return &Entry{
		FilePath:  target,
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}, nil
}

func (s *fileStore) DirExists(dir string) bool {
	info, err := os.Stat(dir)
	return err == nil && info.IsDir()
}

func (s *fileStore) ListDir(ctx context.Context, dir string) ([]DirEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	items, err := os.ReadDir(target)
	if err != nil {
		return nil, err
	}

	result := make([]DirEntry, 0, len(items))
	for _, item := range items {
		entry := DirEntry{
			Name:  item.Name(),
			Path:  filepath.Join(target, item.Name()),
			IsDir: item.IsDir(),
			Mode:  item.Type(),
		}
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *fileStore) RemoveDir(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target, err := s.managedPath(dir)
	if err != nil {
		return err
	}
	if target == s.basePath {
		return fmt.Errorf("refusing to remove storage root: %w", ErrOutsideRoot)
	}

	unlock := s.locks.Lock(target)
	defer unlock()

	if err := os.RemoveAll(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// managedPath 返回绝对路径，并保证其位于 basePath 之内。
func (s *fileStore) managedPath(p string) (string, error) {
	if p == "" {
		return "", errors.New("path required")
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(s.basePath, target)
	}
	target = filepath.Clean(target)
	if target != s.basePath && !strings.HasPrefix(target, s.basePath+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", p, ErrOutsideRoot)
	}
	return target, nil
}

func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	var copied int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return copied, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			w, wErr := dst.Write(buf[:n])
			copied += int64(w)
			if wErr != nil {
				return copied, wErr
			}
			if w < n {
				return copied, io.ErrShortWrite
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return copied, nil
			}
			return copied, err
		}
	}
}
