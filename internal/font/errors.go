package font

import (
	"errors"
	"fmt"
	"io/fs"
)

// 整体失败的哨兵错误，调用方通过 errors.Is 判断。
var (
	// ErrNotFound 表示目录/注册表/磁盘上都不存在该字体。
	ErrNotFound = errors.New("font not found")
	// ErrAllVariantsFailed 表示所有变体下载/拷贝均失败，不会创建注册表记录。
	ErrAllVariantsFailed = errors.New("all variants failed")
	// ErrNoVariants 表示样式表或目录中没有任何可用变体，这与解析失败是不同的结果。
	ErrNoVariants = errors.New("no variants found")
	// ErrInFlight 表示同一字体族已有缓存流程在执行。
	ErrInFlight = errors.New("cache operation already in flight")
	// ErrInvalidReference 表示无法从输入中识别字体族名或目录 URL。
	ErrInvalidReference = errors.New("invalid font reference")
)

// NetworkErrorKind 区分超时、不可达与 HTTP 状态错误。
type NetworkErrorKind string

const (
	NetworkTimeout     NetworkErrorKind = "timeout"
	NetworkUnreachable NetworkErrorKind = "unreachable"
	NetworkHTTPStatus  NetworkErrorKind = "http_status"
)

// NetworkError 描述一次网络获取失败。
type NetworkError struct {
	Kind       NetworkErrorKind
	StatusCode int
	URL        string
	Err        error
}

func (e *NetworkError) Error() string {
	switch e.Kind {
	case NetworkHTTPStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case NetworkTimeout:
		return fmt.Sprintf("fetch %s: timeout", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: unreachable: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unreachable", e.URL)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Retryable 报告该错误是否值得重试：超时、不可达、429 与 5xx。
func (e *NetworkError) Retryable() bool {
	switch e.Kind {
	case NetworkTimeout, NetworkUnreachable:
		return true
	case NetworkHTTPStatus:
		return e.StatusCode == 429 || e.StatusCode >= 500
	}
	return false
}

// NotFoundError 表示目录中没有该字体族，区别于网络故障，便于 UI 提示“未知字体”。
type NotFoundError struct {
	Family string
	URL    string
}

func (e *NotFoundError) Error() string {
	if e.Family == "" {
		return fmt.Sprintf("font not found at %s", e.URL)
	}
	return fmt.Sprintf("font %q not found", e.Family)
}

// Is 使 errors.Is(err, ErrNotFound) 成立。
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ParseError 描述样式表语法错误及其字节偏移。
type ParseError struct {
	Reason string
	Offset int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("stylesheet parse error at offset %d: %s", e.Offset, e.Reason)
}

// FilesystemErrorKind 区分权限、路径不存在与一般 I/O 错误。
type FilesystemErrorKind string

const (
	FilesystemPermission FilesystemErrorKind = "permission"
	FilesystemNotFound   FilesystemErrorKind = "not_found"
	FilesystemIO         FilesystemErrorKind = "io"
)

// FilesystemError 包装底层文件系统错误。
type FilesystemError struct {
	Kind FilesystemErrorKind
	Op   string
	Path string
	Err  error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *FilesystemError) Unwrap() error {
	return e.Err
}

// NewFilesystemError 根据底层错误归类；已是 FilesystemError 的错误原样返回。
func NewFilesystemError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var existing *FilesystemError
	if errors.As(err, &existing) {
		return existing
	}
	kind := FilesystemIO
	switch {
	case errors.Is(err, fs.ErrPermission):
		kind = FilesystemPermission
	case errors.Is(err, fs.ErrNotExist):
		kind = FilesystemNotFound
	}
	return &FilesystemError{Kind: kind, Op: op, Path: path, Err: err}
}
