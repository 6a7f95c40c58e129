// Package layout 负责缓存根目录下的磁盘布局：族目录的创建与变体文件的路径解析。
//
// 新布局为 {root}/{Family}/{Family}-{weight}-{style}.{format}；早期版本把文件平铺在根目录
// （{root}/{Family}-{weight}-{style}.{format}），查找时按新布局优先、旧布局兜底，
// 不做自动迁移。
package layout

import (
	"errors"
	"path/filepath"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

// Resolver 根据描述符计算并探测变体文件路径。
type Resolver struct {
	store storage.Store
}

// NewResolver 基于 store 的根目录构建 Resolver。
func NewResolver(store storage.Store) *Resolver {
	return &Resolver{store: store}
}

// Root 返回缓存根目录。
func (r *Resolver) Root() string {
	return r.store.Root()
}

// FamilyDir 返回族目录的绝对路径。
func (r *Resolver) FamilyDir(family string) string {
	return filepath.Join(r.store.Root(), font.Sanitize(family))
}

// CanonicalPath 返回新布局下的文件路径。
func (r *Resolver) CanonicalPath(family string, d font.Descriptor) string {
	d.Family = family
	return filepath.Join(r.FamilyDir(family), d.FileName())
}

// LegacyPath 返回旧版平铺布局下的文件路径。
func (r *Resolver) LegacyPath(family string, d font.Descriptor) string {
	d.Family = family
	return filepath.Join(r.store.Root(), d.FileName())
}

// RelPath 把绝对路径转换为相对根目录、以斜杠分隔的形式，用于注册表持久化。
func (r *Resolver) RelPath(absPath string) (string, error) {
	rel, err := filepath.Rel(r.store.Root(), absPath)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// AbsPath 是 RelPath 的逆操作。
func (r *Resolver) AbsPath(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(r.store.Root(), filepath.FromSlash(relPath))
}

// ResolveExisting 依次检查新布局与旧布局，返回第一个存在的文件；都不存在时返回 font.ErrNotFound。
func (r *Resolver) ResolveExisting(family string, d font.Descriptor) (string, error) {
	for _, candidate := range []string{r.CanonicalPath(family, d), r.LegacyPath(family, d)} {
		_, err := r.store.Stat(candidate)
		if err == nil {
			return candidate, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return "", font.NewFilesystemError("stat", candidate, err)
		}
	}
	return "", font.ErrNotFound
}
