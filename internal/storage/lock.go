package storage

import "sync"

// KeyedLocker 为每个 key 提供独立的互斥锁，引用计数归零后自动回收，
// 不同 key 之间互不阻塞。
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*entryLock
}

type entryLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyedLocker 创建空的锁表。
func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*entryLock)}
}

// Lock 阻塞直到获取 key 对应的锁，返回的函数用于释放。
func (k *KeyedLocker) Lock(key string) func() {
	k.mu.Lock()
	lock := k.locks[key]
	if lock == nil {
		lock = &entryLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()
		k.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// Len 返回当前仍被持有或等待的 key 数量。
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
