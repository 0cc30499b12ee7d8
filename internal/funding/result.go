package funding

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrOperationInFlight  = errors.New("another operation is in flight for this account")
	ErrWithdrawNotAllowed = errors.New("withdraw requires a completed crowdfund and the receiver account")
	ErrNoAccount          = errors.New("no signing account configured")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
)

// Action 钱包操作类型
type Action string

const (
	ActionDonate   Action = "donate"
	ActionWithdraw Action = "withdraw"
)

// Stage 操作执行到的阶段
type Stage string

const (
	StagePrepare  Stage = "prepare"
	StageApprove  Stage = "approve"
	StageDonate   Stage = "donate"
	StageWithdraw Stage = "withdraw"
	StageRefresh  Stage = "refresh"
	StageDone     Stage = "done"
)

// TxResult 一次钱包操作的结果，失败时 Err 非空且 Stage 为失败所在阶段
type TxResult struct {
	Action        Action
	Stage         Stage
	ApproveTxHash *common.Hash
	TxHash        *common.Hash
	Err           error
}

// OK 操作是否成功（刷新失败不影响已上链的交易）
func (r TxResult) OK() bool {
	return r.Err == nil || r.Stage == StageRefresh
}

func (r TxResult) fail(stage Stage, err error) TxResult {
	r.Stage = stage
	r.Err = err
	return r
}
