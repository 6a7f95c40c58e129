package layout

import (
	"context"

	"github.com/font-hub/font-hub/internal/font"
	"github.com/font-hub/font-hub/internal/storage"
)

// Organizer 负责族目录的幂等创建。同一路径的创建通过引用计数锁串行化，
// 不同族之间互不阻塞。
type Organizer struct {
	store  storage.Store
	locker *storage.KeyedLocker
}

// NewOrganizer 创建 Organizer。
func NewOrganizer(store storage.Store) *Organizer {
	return &Organizer{store: store, locker: storage.NewKeyedLocker()}
}

// EnsureFolder 确保目录存在；已存在（包括并发创建）视为成功。
func (o *Organizer) EnsureFolder(ctx context.Context, path string) error {
	unlock := o.locker.Lock(path)
	defer unlock()

	if o.store.DirExists(path) {
		return nil
	}
	if err := o.store.EnsureDir(ctx, path); err != nil {
		return font.NewFilesystemError("mkdir", path, err)
	}
	return nil
}
