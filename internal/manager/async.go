package manager

import "context"

// Result 是异步流程的终止结果，Err 非空时 Outcome 仍描述失败所在阶段。
type Result struct {
	Outcome *Outcome
	Err     error
}

// CacheFromCatalogAsync 在后台执行 CacheFromCatalog，返回的通道恰好收到一个结果后关闭。
func (m *Manager) CacheFromCatalogAsync(ctx context.Context, reference string) <-chan Result {
	return m.async(func() (*Outcome, error) {
		return m.CacheFromCatalog(ctx, reference)
	})
}

// CacheFromLocalAsync 在后台执行 CacheFromLocal。
func (m *Manager) CacheFromLocalAsync(ctx context.Context, folder, family string) <-chan Result {
	return m.async(func() (*Outcome, error) {
		return m.CacheFromLocal(ctx, folder, family)
	})
}

func (m *Manager) async(fn func() (*Outcome, error)) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		outcome, err := fn()
		ch <- Result{Outcome: outcome, Err: err}
	}()
	return ch
}
