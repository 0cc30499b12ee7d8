package funding

import (
	"context"
	"sync/atomic"

	"github.com/blues/cleanfund/internal/logger"
)

// DispatchFunc 完成后触发的派发调用
type DispatchFunc func(ctx context.Context, taskId string) error

// CompletionWatcher 首次观察到众筹完成时触发一次派发。
// 只保证单个实例内最多一次，跨进程的幂等由服务端派发标记保证。
type CompletionWatcher struct {
	taskId   string
	dispatch DispatchFunc
	fired    atomic.Bool
}

func NewCompletionWatcher(taskId string, dispatch DispatchFunc) *CompletionWatcher {
	return &CompletionWatcher{taskId: taskId, dispatch: dispatch}
}

// Fired 是否已经触发过
func (w *CompletionWatcher) Fired() bool {
	return w.fired.Load()
}

// Observe 快照显示已完成且尚未触发时调用派发；失败只记录日志，不重试
func (w *CompletionWatcher) Observe(ctx context.Context, s Snapshot) bool {
	if !s.Completed || w.taskId == "" {
		return false
	}
	if !w.fired.CompareAndSwap(false, true) {
		return false
	}

	logger.Info("Crowdfund %s completed, dispatching task %s", s.ContractAddress.Hex(), w.taskId)
	if err := w.dispatch(ctx, w.taskId); err != nil {
		logger.Error("Dispatch for task %s failed: %v", w.taskId, err)
	}
	return true
}
