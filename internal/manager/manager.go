// Package manager 编排字体缓存流程：把目录引用或本地目录转换为缓存根目录下的变体文件，
// 并把结果合并进注册表。
//
// 每个流程在做任何 I/O 之前先原子地登记族名（sync.Map.LoadOrStore），同一族的第二个
// 请求立即得到 font.ErrInFlight；登记在流程结束时通过 defer 释放。变体下载/拷贝并行执行，
// 单个变体失败不会中断其它变体，所有结果收集完成后再统一决定是否写注册表。
package manager

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/catalog"
	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/layout"
	"github.com/font-hub/font-hub/internal/localscan"
	"github.com/font-hub/font-hub/internal/logging"
	"github.com/font-hub/font-hub/internal/metrics"
	"github.com/font-hub/font-hub/internal/registry"
	"github.com/font-hub/font-hub/internal/storage"
)

// StylesheetSource 解析引用并抓取样式表，由 *catalog.Fetcher 实现。
type StylesheetSource interface {
	Resolve(raw string) (catalog.Reference, error)
	Fetch(ctx context.Context, ref catalog.Reference) (string, error)
}

// VariantDownloader 下载单个变体，由 *catalog.Downloader 实现。
type VariantDownloader interface {
	Download(ctx context.Context, sourceURL string) ([]byte, error)
}

// FolderScanner 扫描本地字体目录，由 *localscan.Scanner 实现。
type FolderScanner interface {
	Scan(ctx context.Context, folder, explicitFamily string) (*localscan.Result, error)
}

// Options 汇总 Manager 的依赖。Fetcher/Downloader/Scanner 为空时对应流程不可用。
type Options struct {
	Store       storage.Store
	Registry    *registry.Registry
	Fetcher     StylesheetSource
	Downloader  VariantDownloader
	Scanner     FolderScanner
	Logger      *logrus.Logger
	Metrics     *metrics.Recorder
	Retry       RetryPolicy
	Concurrency int
	Now         func() time.Time
}

// Manager 是缓存管理器。
type Manager struct {
	store      storage.Store
	registry   *registry.Registry
	fetcher    StylesheetSource
	downloader VariantDownloader
	scanner    FolderScanner
	resolver   *layout.Resolver
	organizer  *layout.Organizer
	logger     *logrus.Logger
	metrics    *metrics.Recorder
	retry      RetryPolicy
	limit      int
	now        func() time.Time

	inFlight sync.Map
}

// New 校验依赖并创建 Manager。
func New(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("manager: store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("manager: registry is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Scanner == nil {
		opts.Scanner = localscan.NewScanner(opts.Store)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Retry.InitialBackoff <= 0 {
		opts.Retry.InitialBackoff = time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	m := &Manager{
		store:      opts.Store,
		registry:   opts.Registry,
		fetcher:    opts.Fetcher,
		downloader: opts.Downloader,
		scanner:    opts.Scanner,
		resolver:   layout.NewResolver(opts.Store),
		organizer:  layout.NewOrganizer(opts.Store),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		retry:      opts.Retry,
		limit:      opts.Concurrency,
		now:        opts.Now,
	}
	m.metrics.SetFonts(m.registry.Len())
	return m, nil
}

// claim 原子地登记 key；已被占用时返回 false。
func (m *Manager) claim(key string) (func(), bool) {
	if _, loaded := m.inFlight.LoadOrStore(key, struct{}{}); loaded {
		return nil, false
	}
	return func() { m.inFlight.Delete(key) }, true
}

func familyClaimKey(family string) string {
	return "family:" + font.FamilyKey(family)
}

// InFlight 返回当前正在执行的流程登记键，按字典序排列。
func (m *Manager) InFlight() []string {
	var keys []string
	m.inFlight.Range(func(key, _ any) bool {
		keys = append(keys, key.(string))
		return true
	})
	sort.Strings(keys)
	return keys
}

// List 返回注册表中的全部字体族。
func (m *Manager) List() []font.Record {
	return m.registry.List()
}

// Get 返回单个字体族记录。
func (m *Manager) Get(family string) (font.Record, bool) {
	return m.registry.Get(family)
}

// Lookup 返回匹配 weight/style 的本地文件绝对路径，不访问网络。
// 优先使用注册表记录中的路径，其次按格式偏好在新旧两种布局下探测。
func (m *Manager) Lookup(family string, weight int, style font.Style) (string, bool) {
	name := strings.TrimSpace(family)
	if name == "" {
		return "", false
	}

	formats := font.Formats()
	if record, ok := m.registry.Get(name); ok {
		name = record.Name
		var recorded []font.Format
		for _, entry := range record.FilesFor(weight, style) {
			if entry.LocalPath != "" {
				path := m.resolver.AbsPath(entry.LocalPath)
				if _, err := m.store.Stat(path); err == nil {
					return path, true
				}
			}
			recorded = append(recorded, entry.Format)
		}
		formats = append(recorded, formats...)
	}

	seen := make(map[font.Format]struct{}, len(formats))
	for _, format := range formats {
		if _, ok := seen[format]; ok {
			continue
		}
		seen[format] = struct{}{}
		d := font.Descriptor{Family: name, Weight: weight, Style: style, Format: format}
		if path, err := m.resolver.ResolveExisting(name, d); err == nil {
			return path, true
		}
	}
	return "", false
}

// Delete 删除注册表记录，再尽力删除族目录；目录删除失败只记录日志。
// 记录与目录都不存在时返回 *font.NotFoundError。
func (m *Manager) Delete(ctx context.Context, family string) error {
	name := strings.TrimSpace(family)
	if font.FamilyKey(name) == "" {
		return &font.NotFoundError{Family: family}
	}
	release, ok := m.claim(familyClaimKey(name))
	if !ok {
		return &WorkflowError{Family: name, Stage: StagePending, Err: font.ErrInFlight}
	}
	defer release()

	fields := logging.FontFields(name, "delete", "persisting")
	// 目录按记录中的写法命名，调用方传入的大小写可能不同。
	folderName := name
	removed := false
	_, err := m.registry.Update(name, func(current *font.Record) (*font.Record, error) {
		if current != nil {
			removed = true
			folderName = current.Name
		}
		return nil, nil
	})
	if err != nil {
		m.logger.WithFields(fields).WithField("error", err.Error()).Error("font_delete_failed")
		return err
	}
	m.metrics.SetFonts(m.registry.Len())

	dir := m.resolver.FamilyDir(folderName)
	existed := m.store.DirExists(dir)
	if existed {
		if err := m.store.RemoveDir(ctx, dir); err != nil {
			m.logger.WithFields(fields).WithFields(logrus.Fields{
				"path":  dir,
				"error": err.Error(),
			}).Warn("font_folder_remove_failed")
		}
	}

	if !removed && !existed {
		return &font.NotFoundError{Family: name}
	}
	m.logger.WithFields(fields).WithFields(logrus.Fields{
		"registry_removed": removed,
		"folder_removed":   existed,
	}).Info("font_deleted")
	return nil
}
