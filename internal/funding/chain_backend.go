package funding

import (
	"context"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// chainBackend 基于 chain.Manager 的 Backend 实现
type chainBackend struct {
	manager *chain.Manager
}

func (b chainBackend) Token(address common.Address) Token {
	return chain.NewTokenContract(b.manager.Token(address))
}

func (b chainBackend) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return b.manager.WaitMined(ctx, tx)
}

// NewChainWidget 用链管理器创建 Widget；配置了私钥时可签名交易
func NewChainWidget(manager *chain.Manager, contractAddress common.Address, opts ...Option) *Widget {
	if signer, err := manager.SignerAddress(); err == nil {
		opts = append([]Option{WithSigner(signer, manager.TransactOpts)}, opts...)
	}
	instance := chain.NewCrowdfundInstance(manager.Crowdfund(contractAddress))
	return NewWidget(instance, chainBackend{manager: manager}, opts...)
}

// ChainReader 服务端只读快照
type ChainReader struct {
	provider *chain.Provider
}

func NewChainReader(provider *chain.Provider) *ChainReader {
	return &ChainReader{provider: provider}
}

// Snapshot 读取实例快照，account 为空时不读取余额和授权
func (r *ChainReader) Snapshot(ctx context.Context, contractAddress string, account *common.Address) (*Snapshot, error) {
	manager, err := r.provider.Get(ctx)
	if err != nil {
		return nil, err
	}
	instance := chain.NewCrowdfundInstance(manager.Crowdfund(common.HexToAddress(contractAddress)))

	var opts []Option
	if account != nil {
		opts = append(opts, WithAccount(*account))
	}
	s, err := NewWidget(instance, chainBackend{manager: manager}, opts...).Refresh(ctx)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// IsCompleted 只读取完成标记
func (r *ChainReader) IsCompleted(ctx context.Context, contractAddress string) (bool, error) {
	manager, err := r.provider.Get(ctx)
	if err != nil {
		return false, err
	}
	return chain.NewCrowdfundInstance(manager.Crowdfund(common.HexToAddress(contractAddress))).IsCompleted(ctx)
}
