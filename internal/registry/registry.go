// Package registry 持久化已缓存字体族的元数据。
//
// 整个注册表以单个 JSON 文件保存（{"version":1,"fonts":[...]}），每次变更都通过
// storage.Store 重写整个文件（临时文件 + fsync + rename），崩溃后文件要么是旧版本要么是新版本。进程内用 RWMutex
// 串行化变更，跨进程用 gofrs/flock 文件锁，并在持锁后重新读取磁盘状态，避免多个进程
// 共享同一注册表时互相覆盖。
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

const documentVersion = 1

type document struct {
	Version int           `json:"version"`
	Fonts   []font.Record `json:"fonts"`
}

// Registry 是线程安全的字体注册表。对外返回的记录都是深拷贝。
type Registry struct {
	store  storage.Store
	path   string
	logger *logrus.Logger
	lock   *flock.Flock

	mu      sync.RWMutex
	records map[string]font.Record
}

// Open 加载注册表文件。path 为相对路径时相对于 store 根目录；读写都经由 store 完成。
// 文件不存在时从空表开始；文件损坏或不可读时记录告警并从空表开始。
func Open(store storage.Store, path string, logger *logrus.Logger) (*Registry, error) {
	if store == nil {
		return nil, errors.New("registry store required")
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("registry path required")
	}
	if logger == nil {
		logger = logrus.New()
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(store.Root(), path)
	}
	if err := store.EnsureDir(context.Background(), filepath.Dir(path)); err != nil {
		return nil, font.NewFilesystemError("mkdir", filepath.Dir(path), err)
	}

	r := &Registry{
		store:   store,
		path:    path,
		logger:  logger,
		lock:    flock.New(path + ".lock"),
		records: make(map[string]font.Record),
	}

	if err := r.lock.RLock(); err != nil {
		return nil, font.NewFilesystemError("lock", path, err)
	}
	records, err := r.load()
	r.lock.Unlock()

	if err != nil {
		logger.WithFields(logrus.Fields{
			"action":   "registry_load",
			"path":     path,
			"impact":   "cached fonts will be re-registered on next cache",
			"error":    err.Error(),
			"registry": "font",
		}).Warn("registry_load_failed")
		return r, nil
	}
	r.records = records
	logger.WithFields(logrus.Fields{
		"action": "registry_load",
		"path":   path,
		"count":  len(records),
	}).Debug("registry_loaded")
	return r, nil
}

// Path 返回注册表文件路径。
func (r *Registry) Path() string {
	return r.path
}

// Get 按族名查找记录，大小写与空白写法不敏感。
func (r *Registry) Get(name string) (font.Record, bool) {
	key := font.FamilyKey(name)
	if key == "" {
		return font.Record{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.records[key]
	if !ok {
		return font.Record{}, false
	}
	return record.Clone(), true
}

// List 返回按族名排序的全部记录。
func (r *Registry) List() []font.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.records))
	for key := range r.records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	result := make([]font.Record, 0, len(keys))
	for _, key := range keys {
		result = append(result, r.records[key].Clone())
	}
	return result
}

// Len 返回记录数量。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Upsert 插入或整体替换一条记录，写盘前会先做 Normalize。
func (r *Registry) Upsert(record font.Record) error {
	_, err := r.Update(record.Name, func(*font.Record) (*font.Record, error) {
		next := record.Clone()
		return &next, nil
	})
	return err
}

// Remove 删除记录，返回记录此前是否存在。
func (r *Registry) Remove(name string) (bool, error) {
	removed := false
	_, err := r.Update(name, func(current *font.Record) (*font.Record, error) {
		removed = current != nil
		return nil, nil
	})
	return removed, err
}

// UpdateFunc 接收当前记录（不存在时为 nil，且为拷贝），返回新记录；返回 nil 表示删除。
type UpdateFunc func(current *font.Record) (*font.Record, error)

// Update 在注册表锁内完成一次读-改-写。只有持久化成功后内存状态才会更新。
func (r *Registry) Update(name string, fn UpdateFunc) (*font.Record, error) {
	key := font.FamilyKey(name)
	if key == "" {
		return nil, fmt.Errorf("registry: empty family name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lock.Lock(); err != nil {
		return nil, font.NewFilesystemError("lock", r.path, err)
	}
	defer r.lock.Unlock()

	records := r.records
	if onDisk, err := r.load(); err != nil {
		r.logger.WithFields(logrus.Fields{
			"action": "registry_reload",
			"path":   r.path,
			"error":  err.Error(),
		}).Warn("registry_reload_failed")
	} else {
		records = onDisk
	}

	var current *font.Record
	if existing, ok := records[key]; ok {
		clone := existing.Clone()
		current = &clone
	}

	next, err := fn(current)
	if err != nil {
		return nil, err
	}

	updated := make(map[string]font.Record, len(records)+1)
	for k, v := range records {
		updated[k] = v
	}
	if next == nil {
		delete(updated, key)
	} else {
		stored := next.Clone()
		stored.Normalize()
		updated[key] = stored
	}

	if err := r.save(updated); err != nil {
		return nil, err
	}
	r.records = updated

	if next == nil {
		return nil, nil
	}
	out := updated[key].Clone()
	return &out, nil
}

// load 从磁盘读取注册表；文件不存在返回空表。
func (r *Registry) load() (map[string]font.Record, error) {
	records := make(map[string]font.Record)
	data, err := r.store.ReadFile(context.Background(), r.path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return records, nil
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return records, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if doc.Version > documentVersion {
		return nil, fmt.Errorf("registry version %d is newer than supported %d", doc.Version, documentVersion)
	}
	for _, record := range doc.Fonts {
		key := font.FamilyKey(record.Name)
		if key == "" {
			continue
		}
		record.Normalize()
		records[key] = record
	}
	return records, nil
}

// save 经 store 原子写入整个注册表。
func (r *Registry) save(records map[string]font.Record) error {
	keys := make([]string, 0, len(records))
	for key := range records {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	doc := document{Version: documentVersion, Fonts: make([]font.Record, 0, len(keys))}
	for _, key := range keys {
		doc.Fonts = append(doc.Fonts, records[key])
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	if _, err := r.store.WriteFile(context.Background(), r.path, bytes.NewReader(data), storage.PutOptions{}); err != nil {
		return font.NewFilesystemError("write", r.path, err)
	}
	return nil
}
