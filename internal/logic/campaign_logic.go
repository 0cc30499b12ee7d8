package logic

import (
	"context"
	"errors"
	"math/big"
	"strings"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/config"
	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/funding"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/blues/cleanfund/internal/model"
	"github.com/blues/cleanfund/internal/repository"
	"github.com/ethereum/go-ethereum/common"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CampaignStore 活动记录的持久化
type CampaignStore interface {
	Upsert(ctx context.Context, campaign *model.CampaignModel) error
	GetByTaskId(ctx context.Context, taskId string) (*model.CampaignModel, error)
	List(ctx context.Context, limit, offset int) ([]model.CampaignModel, int64, error)
	UpdateDeployment(ctx context.Context, taskId, txHash string, contractAddress *string) error
}

// Deployer 部署众筹实例，并可由已上链的部署交易重新解析地址
type Deployer interface {
	Deploy(ctx context.Context, receiver string, targetAmount float64) (*chain.DeployResult, error)
	Resolve(ctx context.Context, txHash string) (*common.Address, error)
}

// DeployerFactory 按需创建部署器，只在配置齐全时调用
type DeployerFactory func(ctx context.Context) (Deployer, error)

// FundingReader 读取链上资金快照
type FundingReader interface {
	Snapshot(ctx context.Context, contractAddress string, account *common.Address) (*funding.Snapshot, error)
}

// ProviderDeployerFactory 基于 chain.Provider 的部署器工厂
func ProviderDeployerFactory(provider *chain.Provider) DeployerFactory {
	return func(ctx context.Context) (Deployer, error) {
		return provider.Deployer(ctx)
	}
}

// CreateResult 创建接口的返回
type CreateResult struct {
	TxHash          string  `json:"txHash"`
	ContractAddress *string `json:"contractAddress"`
}

// CampaignDetail 详情页数据
type CampaignDetail struct {
	Campaign        *model.CampaignModel        `json:"crowdfunding"`
	Funding         *FundingView                `json:"funding,omitempty"`
	FundingError    string                      `json:"funding_error,omitempty"`
	DispatchRecords []model.DispatchRecordModel `json:"dispatch_records,omitempty"`
}

// DispatchHistory 派发记录查询
type DispatchHistory interface {
	ListByTaskId(ctx context.Context, taskId string) ([]model.DispatchRecordModel, error)
}

// CampaignPage 列表分页
type CampaignPage struct {
	Items  []model.CampaignModel `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

// FundingView 资金快照的展示结构，金额按代币精度格式化
type FundingView struct {
	ContractAddress string  `json:"contractAddress"`
	Target          string  `json:"target"`
	Raised          string  `json:"raised"`
	Completed       bool    `json:"completed"`
	Receiver        string  `json:"receiver"`
	Token           string  `json:"token"`
	Decimals        int     `json:"decimals"`
	Account         *string `json:"account,omitempty"`
	Balance         *string `json:"balance,omitempty"`
	Allowance       *string `json:"allowance,omitempty"`
	CanWithdraw     bool    `json:"canWithdraw"`
	NeedsApprove    *bool   `json:"needsApprove,omitempty"`
}

// NewFundingView 由快照生成展示结构；amount 非空时计算是否需要授权
func NewFundingView(s *funding.Snapshot, amount *big.Int) *FundingView {
	view := &FundingView{
		ContractAddress: s.ContractAddress.Hex(),
		Target:          s.Format(s.Target),
		Raised:          s.Format(s.Raised),
		Completed:       s.Completed,
		Receiver:        s.Receiver.Hex(),
		Token:           s.Token.Hex(),
		Decimals:        s.Decimals,
		CanWithdraw:     s.CanWithdraw(),
	}
	if s.Account != nil {
		account := s.Account.Hex()
		balance := s.Format(s.Balance)
		allowance := s.Format(s.Allowance)
		view.Account = &account
		view.Balance = &balance
		view.Allowance = &allowance
		if amount != nil {
			needs := s.NeedsApprove(amount)
			view.NeedsApprove = &needs
		}
	}
	return view
}

// CampaignLogic 活动创建、部署和查询
type CampaignLogic struct {
	store       CampaignStore
	chainCfg    config.ChainConfig
	newDeployer DeployerFactory
	reader      FundingReader
	history     DispatchHistory
}

// NewCampaignLogic reader 可为空，此时详情页不附带链上快照
func NewCampaignLogic(store CampaignStore, chainCfg config.ChainConfig, newDeployer DeployerFactory, reader FundingReader) *CampaignLogic {
	return &CampaignLogic{
		store:       store,
		chainCfg:    chainCfg,
		newDeployer: newDeployer,
		reader:      reader,
	}
}

// WithDispatchHistory 详情页附带派发记录
func (l *CampaignLogic) WithDispatchHistory(history DispatchHistory) *CampaignLogic {
	l.history = history
	return l
}

// Create 写入活动记录并部署众筹合约。
// 部署前的任何失败都会保留已写入的记录，相同 task_id 重新提交即可重试。
func (l *CampaignLogic) Create(ctx context.Context, req *CreateCampaignRequest) (*CreateResult, error) {
	campaign := req.ToModel()
	if err := l.store.Upsert(ctx, campaign); err != nil {
		logger.Error("Upsert campaign %s failed: %v", req.TaskId, err)
		return nil, apperrors.ErrDBUpsertFailed.WithDetails(err.Error()).WithError(err)
	}
	metrics.CampaignsUpserted.Inc()

	stored, err := l.store.GetByTaskId(ctx, req.TaskId)
	if err != nil {
		logger.Error("Read back campaign %s failed: %v", req.TaskId, err)
		return nil, apperrors.ErrDBUpsertFailed.WithDetails(err.Error()).WithError(err)
	}
	if stored.IsDeployed() {
		logger.Info("Campaign %s already deployed at %s, skip deployment", req.TaskId, *stored.ContractAddress)
		metrics.Deployments.WithLabelValues("already_deployed").Inc()
		txHash := ""
		if stored.DeployTxHash != nil {
			txHash = *stored.DeployTxHash
		}
		return &CreateResult{TxHash: txHash, ContractAddress: stored.ContractAddress}, nil
	}

	if missing := l.chainCfg.MissingDeployEnv(); len(missing) > 0 {
		logger.Warn("Deployment for %s skipped, missing env: %s", req.TaskId, strings.Join(missing, ", "))
		metrics.Deployments.WithLabelValues("env_missing").Inc()
		return nil, apperrors.ErrEnvMissing.WithDetails(missing)
	}

	deployer, err := l.newDeployer(ctx)
	if err != nil {
		logger.Error("Create deployer for %s failed: %v", req.TaskId, err)
		metrics.Deployments.WithLabelValues("submit_failed").Inc()
		return nil, apperrors.ErrDeploySubmitFailed.WithDetails(err.Error()).WithError(err)
	}

	if stored.DeployTxHash != nil && *stored.DeployTxHash != "" {
		res, redeploy, err := l.resume(ctx, deployer, stored)
		if !redeploy {
			return res, err
		}
	}

	result, err := deployer.Deploy(ctx, req.ReceiverAddress, *req.TargetAmount)
	if err != nil {
		return nil, l.deployError(ctx, req.TaskId, err)
	}

	var contractAddress *string
	if result.ContractAddress != nil {
		addr := result.ContractAddress.Hex()
		contractAddress = &addr
	}
	metrics.Deployments.WithLabelValues("success").Inc()

	txHash := result.TxHash.Hex()
	if err := l.store.UpdateDeployment(ctx, req.TaskId, txHash, contractAddress); err != nil {
		// 合约已经上链，写回失败只记录，不影响返回
		logger.Error("Write back deployment of %s (tx %s) failed: %v", req.TaskId, txHash, err)
	}

	logger.Info("Campaign %s deployed: tx %s, contract %v (source: %s)", req.TaskId, txHash, deref(contractAddress), result.Source)
	return &CreateResult{TxHash: txHash, ContractAddress: contractAddress}, nil
}

// resume 记录中已有部署交易时只重新解析地址；该交易回滚时才允许重新部署
func (l *CampaignLogic) resume(ctx context.Context, deployer Deployer, stored *model.CampaignModel) (*CreateResult, bool, error) {
	txHash := *stored.DeployTxHash
	addr, err := deployer.Resolve(ctx, txHash)
	if errors.Is(err, chain.ErrReverted) {
		logger.Warn("Previous deployment %s of %s reverted, deploying again", txHash, stored.TaskId)
		return nil, true, nil
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, false, apperrors.FromError(err)
		}
		logger.Error("Resolve previous deployment %s of %s failed: %v", txHash, stored.TaskId, err)
		metrics.Deployments.WithLabelValues("wait_failed").Inc()
		return nil, false, apperrors.ErrDeployWaitFailed.WithDetails(err.Error()).WithError(err)
	}

	res := &CreateResult{TxHash: txHash}
	if addr != nil {
		hex := addr.Hex()
		res.ContractAddress = &hex
		if err := l.store.UpdateDeployment(ctx, stored.TaskId, txHash, &hex); err != nil {
			logger.Error("Write back resolved address of %s failed: %v", stored.TaskId, err)
		}
	}
	metrics.Deployments.WithLabelValues("resumed").Inc()
	logger.Info("Campaign %s resumed from tx %s, contract %v", stored.TaskId, txHash, deref(res.ContractAddress))
	return res, false, nil
}

func (l *CampaignLogic) deployError(ctx context.Context, taskId string, err error) error {
	// 已提交但未确认的交易也记下哈希，重新提交时不会再部署一次
	var deployErr *chain.DeployError
	if errors.As(err, &deployErr) && deployErr.TxHash != (common.Hash{}) {
		txHash := deployErr.TxHash.Hex()
		if updateErr := l.store.UpdateDeployment(context.WithoutCancel(ctx), taskId, txHash, nil); updateErr != nil {
			logger.Error("Record pending deployment %s of %s failed: %v", txHash, taskId, updateErr)
		}
	}

	if errors.Is(err, context.Canceled) {
		return apperrors.FromError(err)
	}
	if errors.Is(err, chain.ErrWait) {
		logger.Error("Deployment of %s not confirmed: %v", taskId, err)
		metrics.Deployments.WithLabelValues("wait_failed").Inc()
		return apperrors.ErrDeployWaitFailed.WithDetails(err.Error()).WithError(err)
	}
	if errors.Is(err, chain.ErrSubmit) {
		logger.Error("Deployment of %s not submitted: %v", taskId, err)
		metrics.Deployments.WithLabelValues("submit_failed").Inc()
		return apperrors.ErrDeploySubmitFailed.WithDetails(err.Error()).WithError(err)
	}
	logger.Error("Deployment of %s failed: %v", taskId, err)
	metrics.Deployments.WithLabelValues("error").Inc()
	return apperrors.ErrInternal.WithDetails(err.Error()).WithError(err)
}

// List 按创建时间倒序分页
func (l *CampaignLogic) List(ctx context.Context, limit, offset int) (*CampaignPage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	items, total, err := l.store.List(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.FromError(err)
	}
	if items == nil {
		items = []model.CampaignModel{}
	}
	return &CampaignPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Detail 读取活动记录；已部署且节点可用时附带链上快照
func (l *CampaignLogic) Detail(ctx context.Context, taskId string) (*CampaignDetail, error) {
	campaign, err := l.get(ctx, taskId)
	if err != nil {
		return nil, err
	}

	detail := &CampaignDetail{Campaign: campaign}
	if l.history != nil {
		records, err := l.history.ListByTaskId(ctx, taskId)
		if err != nil {
			logger.Warn("Dispatch records for %s unavailable: %v", taskId, err)
		} else {
			detail.DispatchRecords = records
		}
	}
	if !campaign.IsDeployed() || l.reader == nil {
		return detail, nil
	}

	snapshot, err := l.reader.Snapshot(ctx, *campaign.ContractAddress, nil)
	if err != nil {
		logger.Warn("Funding snapshot for %s unavailable: %v", taskId, err)
		detail.FundingError = err.Error()
		return detail, nil
	}
	detail.Funding = NewFundingView(snapshot, nil)
	return detail, nil
}

// Funding 读取资金快照；account 为空时不读取余额和授权，amount 为空时不判断授权
func (l *CampaignLogic) Funding(ctx context.Context, taskId, account, amount string) (*FundingView, error) {
	var issues []apperrors.Issue
	var accountAddr *common.Address
	if account = strings.TrimSpace(account); account != "" {
		if !common.IsHexAddress(account) {
			issues = append(issues, apperrors.Issue{Path: "account", Message: "account must be a valid address", Code: "custom"})
		} else {
			addr := common.HexToAddress(account)
			accountAddr = &addr
		}
	}
	if len(issues) > 0 {
		return nil, apperrors.ErrInvalidPayload.WithIssues(issues)
	}

	campaign, err := l.get(ctx, taskId)
	if err != nil {
		return nil, err
	}
	if !campaign.IsDeployed() {
		return nil, apperrors.ErrNotFound.WithDetails("crowdfunding has no deployed contract")
	}
	if l.reader == nil {
		return nil, apperrors.ErrChainUnavailable
	}

	snapshot, err := l.reader.Snapshot(ctx, *campaign.ContractAddress, accountAddr)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, apperrors.FromError(err)
		}
		logger.Warn("Funding snapshot for %s failed: %v", taskId, err)
		return nil, apperrors.ErrChainUnavailable.WithDetails(err.Error()).WithError(err)
	}

	var parsed *big.Int
	if amount = strings.TrimSpace(amount); amount != "" {
		parsed, err = chain.ParseUnitsString(amount, snapshot.Decimals)
		if err != nil {
			return nil, apperrors.ErrInvalidPayload.WithIssues([]apperrors.Issue{{
				Path: "amount", Message: "amount must be a non-negative decimal within token precision", Code: "custom",
			}})
		}
	}
	return NewFundingView(snapshot, parsed), nil
}

func (l *CampaignLogic) get(ctx context.Context, taskId string) (*model.CampaignModel, error) {
	campaign, err := l.store.GetByTaskId(ctx, taskId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound.WithError(err)
		}
		return nil, apperrors.FromError(err)
	}
	return campaign, nil
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}
