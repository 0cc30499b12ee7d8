package funding

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultDecimals 读取代币精度失败时使用
const DefaultDecimals = 18

// Instance 众筹实例的链上读写
type Instance interface {
	Address() common.Address
	TargetAmount(ctx context.Context) (*big.Int, error)
	TotalRaised(ctx context.Context) (*big.Int, error)
	IsCompleted(ctx context.Context) (bool, error)
	ReceiverAddress(ctx context.Context) (common.Address, error)
	Token(ctx context.Context) (common.Address, error)
	Donate(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error)
	Withdraw(opts *bind.TransactOpts) (*types.Transaction, error)
}

// Token 支付代币
type Token interface {
	Decimals(ctx context.Context) (uint8, error)
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error)
	Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error)
}

// Backend 代币绑定和交易确认
type Backend interface {
	Token(address common.Address) Token
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// SignerFunc 为每笔交易生成签名参数
type SignerFunc func(ctx context.Context) (*bind.TransactOpts, error)

// Snapshot 链上字段的投影，各字段为独立读取，不保证彼此一致
type Snapshot struct {
	ContractAddress common.Address
	Target          *big.Int
	Raised          *big.Int
	Completed       bool
	Receiver        common.Address
	Token           common.Address
	Decimals        int
	Account         *common.Address
	Balance         *big.Int // 未指定账户时为 nil
	Allowance       *big.Int
}

// CanWithdraw 已完成且当前账户为收款人（大小写不敏感）
func (s Snapshot) CanWithdraw() bool {
	if !s.Completed || s.Account == nil || s.Receiver == (common.Address{}) {
		return false
	}
	return strings.EqualFold(s.Account.Hex(), s.Receiver.Hex())
}

// NeedsApprove 捐款金额超过当前授权额度
func (s Snapshot) NeedsApprove(amount *big.Int) bool {
	allowance := s.Allowance
	if allowance == nil {
		allowance = new(big.Int)
	}
	return amount.Cmp(allowance) > 0
}

// Format 按代币精度格式化
func (s Snapshot) Format(v *big.Int) string {
	return chain.FormatUnits(v, s.Decimals)
}

// Widget 单个众筹实例的资金操作，交易成功后刷新全部投影
type Widget struct {
	instance Instance
	backend  Backend
	account  *common.Address
	signer   SignerFunc
	guard    *InFlightGuard
	watcher  *CompletionWatcher

	mu       sync.RWMutex
	snapshot Snapshot
	loaded   bool
}

// Option Widget 配置项
type Option func(*Widget)

// WithAccount 指定读取余额和授权的账户
func WithAccount(account common.Address) Option {
	return func(w *Widget) {
		w.account = &account
	}
}

// WithSigner 指定签名方，可发送交易
func WithSigner(account common.Address, signer SignerFunc) Option {
	return func(w *Widget) {
		w.account = &account
		w.signer = signer
	}
}

// WithGuard 替换默认的进程级互斥
func WithGuard(guard *InFlightGuard) Option {
	return func(w *Widget) {
		w.guard = guard
	}
}

// WithWatcher 每次刷新后把快照交给完成观察者
func WithWatcher(watcher *CompletionWatcher) Option {
	return func(w *Widget) {
		w.watcher = watcher
	}
}

func NewWidget(instance Instance, backend Backend, opts ...Option) *Widget {
	w := &Widget{
		instance: instance,
		backend:  backend,
		guard:    defaultGuard,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Snapshot 返回最近一次刷新的快照
func (w *Widget) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.snapshot
}

// Refresh 重新读取全部链上字段
func (w *Widget) Refresh(ctx context.Context) (Snapshot, error) {
	s := Snapshot{ContractAddress: w.instance.Address(), Account: w.account}

	var err error
	if s.Target, err = w.instance.TargetAmount(ctx); err != nil {
		return s, fmt.Errorf("read targetAmount: %w", err)
	}
	if s.Raised, err = w.instance.TotalRaised(ctx); err != nil {
		return s, fmt.Errorf("read totalRaised: %w", err)
	}
	if s.Completed, err = w.instance.IsCompleted(ctx); err != nil {
		return s, fmt.Errorf("read isCompleted: %w", err)
	}
	if s.Receiver, err = w.instance.ReceiverAddress(ctx); err != nil {
		return s, fmt.Errorf("read receiverAddress: %w", err)
	}
	if s.Token, err = w.instance.Token(ctx); err != nil {
		return s, fmt.Errorf("read token: %w", err)
	}

	token := w.backend.Token(s.Token)
	s.Decimals = DefaultDecimals
	if d, err := token.Decimals(ctx); err != nil {
		logger.Debug("Token %s decimals unavailable, using %d: %v", s.Token.Hex(), DefaultDecimals, err)
	} else {
		s.Decimals = int(d)
	}

	if w.account != nil {
		if s.Balance, err = token.BalanceOf(ctx, *w.account); err != nil {
			return s, fmt.Errorf("read balanceOf: %w", err)
		}
		if s.Allowance, err = token.Allowance(ctx, *w.account, s.ContractAddress); err != nil {
			return s, fmt.Errorf("read allowance: %w", err)
		}
	}

	w.mu.Lock()
	w.snapshot = s
	w.loaded = true
	w.mu.Unlock()

	if w.watcher != nil {
		w.watcher.Observe(ctx, s)
	}
	return s, nil
}

func (w *Widget) current(ctx context.Context) (Snapshot, error) {
	w.mu.RLock()
	loaded := w.loaded
	s := w.snapshot
	w.mu.RUnlock()
	if loaded {
		return s, nil
	}
	return w.Refresh(ctx)
}

// refreshAllowance 授权确认后只刷新授权额度
func (w *Widget) refreshAllowance(ctx context.Context, token Token) (*big.Int, error) {
	allowance, err := token.Allowance(ctx, *w.account, w.instance.Address())
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.snapshot.Allowance = allowance
	w.mu.Unlock()
	return allowance, nil
}

// Donate 授权不足时先 approve 并等待确认，再 donate。同一账户同时只允许一个操作。
func (w *Widget) Donate(ctx context.Context, amount string) TxResult {
	result := TxResult{Action: ActionDonate, Stage: StagePrepare}
	if w.signer == nil || w.account == nil {
		return result.fail(StagePrepare, ErrNoAccount)
	}

	release, ok := w.guard.TryAcquire(w.account.Hex())
	if !ok {
		return result.fail(StagePrepare, ErrOperationInFlight)
	}
	defer release()

	s, err := w.current(ctx)
	if err != nil {
		return result.fail(StagePrepare, err)
	}
	parsed, err := chain.ParseUnitsString(strings.TrimSpace(amount), s.Decimals)
	if err != nil || parsed.Sign() <= 0 {
		return result.fail(StagePrepare, ErrInvalidAmount)
	}

	// 授权额度可能已在别处变化，比较前重新读取
	token := w.backend.Token(s.Token)
	if s.Allowance, err = w.refreshAllowance(ctx, token); err != nil {
		return result.fail(StagePrepare, fmt.Errorf("read allowance: %w", err))
	}

	if s.NeedsApprove(parsed) {
		opts, err := w.signer(ctx)
		if err != nil {
			return result.fail(StageApprove, err)
		}
		tx, err := token.Approve(opts, s.ContractAddress, parsed)
		if err != nil {
			return result.fail(StageApprove, fmt.Errorf("submit approve: %w", err))
		}
		hash := tx.Hash()
		result.ApproveTxHash = &hash
		if _, err := w.backend.WaitMined(ctx, tx); err != nil {
			return result.fail(StageApprove, fmt.Errorf("confirm approve: %w", err))
		}
		if _, err := w.refreshAllowance(ctx, token); err != nil {
			logger.Warn("Refresh allowance after approve %s failed: %v", hash.Hex(), err)
		}
	}

	opts, err := w.signer(ctx)
	if err != nil {
		return result.fail(StageDonate, err)
	}
	tx, err := w.instance.Donate(opts, parsed)
	if err != nil {
		return result.fail(StageDonate, fmt.Errorf("submit donate: %w", err))
	}
	hash := tx.Hash()
	result.TxHash = &hash
	if _, err := w.backend.WaitMined(ctx, tx); err != nil {
		return result.fail(StageDonate, fmt.Errorf("confirm donate: %w", err))
	}

	if _, err := w.Refresh(ctx); err != nil {
		return result.fail(StageRefresh, err)
	}
	result.Stage = StageDone
	return result
}

// Withdraw 仅收款人在众筹完成后可提取
func (w *Widget) Withdraw(ctx context.Context) TxResult {
	result := TxResult{Action: ActionWithdraw, Stage: StagePrepare}
	if w.signer == nil || w.account == nil {
		return result.fail(StagePrepare, ErrNoAccount)
	}

	release, ok := w.guard.TryAcquire(w.account.Hex())
	if !ok {
		return result.fail(StagePrepare, ErrOperationInFlight)
	}
	defer release()

	s, err := w.Refresh(ctx)
	if err != nil {
		return result.fail(StagePrepare, err)
	}
	if !s.CanWithdraw() {
		return result.fail(StagePrepare, ErrWithdrawNotAllowed)
	}

	opts, err := w.signer(ctx)
	if err != nil {
		return result.fail(StageWithdraw, err)
	}
	tx, err := w.instance.Withdraw(opts)
	if err != nil {
		return result.fail(StageWithdraw, fmt.Errorf("submit withdraw: %w", err))
	}
	hash := tx.Hash()
	result.TxHash = &hash
	if _, err := w.backend.WaitMined(ctx, tx); err != nil {
		return result.fail(StageWithdraw, fmt.Errorf("confirm withdraw: %w", err))
	}

	if _, err := w.Refresh(ctx); err != nil {
		return result.fail(StageRefresh, err)
	}
	result.Stage = StageDone
	return result
}
