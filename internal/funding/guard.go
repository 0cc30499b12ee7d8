package funding

import (
	"strings"
	"sync"
)

// InFlightGuard 按账户串行化钱包操作
type InFlightGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{active: make(map[string]struct{})}
}

// defaultGuard 进程内共享，同一账户在不同 Widget 间也互斥
var defaultGuard = NewInFlightGuard()

// TryAcquire 获取账户的执行权，已被占用时返回 false
func (g *InFlightGuard) TryAcquire(account string) (func(), bool) {
	key := strings.ToLower(account)

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[key]; busy {
		return nil, false
	}
	g.active[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, key)
			g.mu.Unlock()
		})
	}, true
}
