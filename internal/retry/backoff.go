package retry

import "time"

// Backoff 指数退避：第 n 次失败后等待 initialDelay*2^(n-1)，不超过 maxDelay；
// 失败次数达到 maxAttempts 后放弃，maxAttempts <= 0 表示不限次数
type Backoff struct {
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
}

func NewBackoff(maxAttempts int, initialDelay, maxDelay time.Duration) *Backoff {
	if initialDelay <= 0 {
		initialDelay = time.Minute
	}
	if maxDelay < initialDelay {
		maxDelay = initialDelay
	}
	return &Backoff{
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		maxDelay:     maxDelay,
	}
}

// Delay 第 attempt 次失败后的等待时长
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := b.initialDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= b.maxDelay {
			return b.maxDelay
		}
	}
	return delay
}

// Exhausted 第 attempt 次失败后是否应放弃
func (b *Backoff) Exhausted(attempt int) bool {
	return b.maxAttempts > 0 && attempt >= b.maxAttempts
}

// MaxAttempts 最大尝试次数
func (b *Backoff) MaxAttempts() int {
	return b.maxAttempts
}
