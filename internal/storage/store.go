package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"time"
)

// Store 是缓存管理器唯一依赖的文件系统接口。磁盘布局遵循：
//
//	<StoragePath>/<Family>/<Family>-<weight>-<style>.<format>   # 新布局
//	<StoragePath>/<Family>-<weight>-<style>.<format>            # 旧版平铺布局（只读兼容）
//
// 所有路径均为绝对路径；写入与删除只允许落在 StoragePath 之内，读取则可以访问
// 任意位置（例如本地导入的源目录）。
type Store interface {
	// Root 返回缓存根目录的绝对路径。
	Root() string

	// EnsureDir 在目录不存在时创建，已存在（包括并发创建的竞态）视为成功。
	EnsureDir(ctx context.Context, dir string) error

	// WriteFile 通过临时文件 + rename 原子写入，失败时清理临时文件。
	WriteFile(ctx context.Context, filePath string, body io.Reader, opts PutOptions) (*Entry, error)

	// Open 返回可流式读取的文件。若不存在则返回 ErrNotFound。
	Open(ctx context.Context, filePath string) (*ReadResult, error)

	// ReadFile 读取完整文件内容。
	ReadFile(ctx context.Context, filePath string) ([]byte, error)

	// Stat 返回文件信息，目录或不存在时返回 ErrNotFound。
	Stat(filePath string) (*Entry, error)

	// DirExists 判断目录是否存在。
	DirExists(dir string) bool

	// ListDir 列出目录下的直接子项（不递归）。
	ListDir(ctx context.Context, dir string) ([]DirEntry, error)

	// RemoveDir 递归删除目录，目录不存在时视为成功。
	RemoveDir(ctx context.Context, dir string) error
}

// PutOptions 控制写入过程中的可选属性。
type PutOptions struct {
	ModTime time.Time
}

// Entry 描述一个磁盘文件。
type Entry struct {
	FilePath  string    `json:"file_path"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

// DirEntry 是 ListDir 的返回项。
type DirEntry struct {
	Name  string
	Path  string
	IsDir bool
	Mode  fs.FileMode
}

// ReadResult 组合 Entry 与正文 Reader，便于 HTTP 层直接流式返回。
type ReadResult struct {
	Entry  Entry
	Reader io.ReadSeekCloser
}

var (
	// ErrNotFound 表示文件不存在。
	ErrNotFound = errors.New("storage entry not found")
	// ErrOutsideRoot 表示写入或删除的目标不在缓存根目录内。
	ErrOutsideRoot = errors.New("path outside storage root")
)
