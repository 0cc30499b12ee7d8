package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	ErrSubmit = errors.New("deployment submission failed")
	ErrWait   = errors.New("deployment confirmation failed")
)

// DeployError 部署失败，区分提交和确认阶段
type DeployError struct {
	Stage  error       // ErrSubmit 或 ErrWait
	TxHash common.Hash // 确认阶段失败时已知
	Err    error
}

func (e *DeployError) Error() string {
	if e.TxHash != (common.Hash{}) {
		return fmt.Sprintf("%v (tx %s): %v", e.Stage, e.TxHash.Hex(), e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Stage, e.Err)
}

func (e *DeployError) Unwrap() []error {
	return []error{e.Stage, e.Err}
}

// DeployResult 部署结果，ContractAddress 可能为空
type DeployResult struct {
	TxHash          common.Hash
	ContractAddress *common.Address
	Source          string
}

// FactoryDeployer 通过工厂合约创建众筹实例
type FactoryDeployer struct {
	manager  *Manager
	decimals int
}

func NewFactoryDeployer(manager *Manager) *FactoryDeployer {
	decimals := manager.GetConfig().TargetDecimals
	if decimals <= 0 {
		decimals = 18
	}
	return &FactoryDeployer{manager: manager, decimals: decimals}
}

// Deploy 提交 createCrowdfund，等待确认并解析实例地址
func (d *FactoryDeployer) Deploy(ctx context.Context, receiver string, targetAmount float64) (*DeployResult, error) {
	if !common.IsHexAddress(receiver) {
		return nil, &DeployError{Stage: ErrSubmit, Err: fmt.Errorf("invalid receiver address %q", receiver)}
	}
	target, err := ParseUnitsFloat(targetAmount, d.decimals)
	if err != nil {
		return nil, &DeployError{Stage: ErrSubmit, Err: err}
	}

	opts, err := d.manager.TransactOpts(ctx)
	if err != nil {
		return nil, &DeployError{Stage: ErrSubmit, Err: err}
	}

	factory := d.manager.Factory()
	timer := metrics.StartChainCall("create_crowdfund")
	tx, err := factory.Transact(opts, "createCrowdfund", common.HexToAddress(receiver), target)
	timer.Done(err)
	if err != nil {
		return nil, &DeployError{Stage: ErrSubmit, Err: err}
	}
	logger.Info("Submitted createCrowdfund tx %s (receiver: %s, target: %s)", tx.Hash().Hex(), receiver, target.String())

	receipt, err := d.manager.WaitMined(ctx, tx)
	if err != nil {
		return nil, &DeployError{Stage: ErrWait, TxHash: tx.Hash(), Err: err}
	}

	addr, source := ResolveCrowdfundAddress(ctx, factory, receipt.Logs, d.manager.EnumerateCrowdfunds)
	return &DeployResult{TxHash: tx.Hash(), ContractAddress: addr, Source: source}, nil
}

// Resolve 根据已上链交易重新解析实例地址。只信任创建事件，枚举结果可能已包含其他活动的实例。
func (d *FactoryDeployer) Resolve(ctx context.Context, txHash string) (*common.Address, error) {
	receipt, err := d.manager.Receipt(ctx, common.HexToHash(txHash))
	if err != nil {
		return nil, fmt.Errorf("fetch receipt %s: %w", txHash, err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrReverted, txHash)
	}
	addr, _ := ResolveCrowdfundAddress(ctx, d.manager.Factory(), receipt.Logs, nil)
	return addr, nil
}
