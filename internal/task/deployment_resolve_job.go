package task

import (
	"context"
	"time"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/blues/cleanfund/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/go-co-op/gocron/v2"
)

const (
	deploymentResolveJobName = "deployment_resolve"
	deploymentResolveBatch   = 50
)

// UnresolvedDeploymentStore 未解析出合约地址的活动
type UnresolvedDeploymentStore interface {
	ListUnresolvedDeployments(ctx context.Context, limit int) ([]model.CampaignModel, error)
	SetContractAddress(ctx context.Context, taskId, contractAddress string) error
}

// AddressResolver 由部署交易解析实例地址
type AddressResolver interface {
	Resolve(ctx context.Context, txHash string) (*common.Address, error)
}

// providerResolver 每次执行时从 Provider 取部署器
type providerResolver struct {
	provider *chain.Provider
}

// NewProviderResolver 基于 chain.Provider 的地址解析
func NewProviderResolver(provider *chain.Provider) AddressResolver {
	return providerResolver{provider: provider}
}

func (r providerResolver) Resolve(ctx context.Context, txHash string) (*common.Address, error) {
	deployer, err := r.provider.Deployer(ctx)
	if err != nil {
		return nil, err
	}
	return deployer.Resolve(ctx, txHash)
}

// DeploymentResolveJob 补写部署已确认但地址解析失败的活动
type DeploymentResolveJob struct {
	campaigns UnresolvedDeploymentStore
	resolver  AddressResolver
	config    config.TaskConfig
}

func NewDeploymentResolveJob(campaigns UnresolvedDeploymentStore, resolver AddressResolver, cfg config.TaskConfig) *DeploymentResolveJob {
	return &DeploymentResolveJob{
		campaigns: campaigns,
		resolver:  resolver,
		config:    cfg,
	}
}

// GetName 获取任务名称
func (j *DeploymentResolveJob) GetName() string {
	return deploymentResolveJobName
}

// GetSchedule 获取调度配置
func (j *DeploymentResolveJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(interval(j.config))
}

// Execute 执行任务
func (j *DeploymentResolveJob) Execute() {
	start := time.Now()
	defer metrics.ObserveJob(deploymentResolveJobName, start)

	resolved, err := j.Run(context.Background())
	if err != nil {
		logger.Error("Deployment resolve failed: %v", err)
		return
	}
	if resolved > 0 {
		logger.Info("Resolved %d crowdfund address(es)", resolved)
	}
}

// Run 逐个解析，返回成功补写的数量
func (j *DeploymentResolveJob) Run(ctx context.Context) (int, error) {
	campaigns, err := j.campaigns.ListUnresolvedDeployments(ctx, deploymentResolveBatch)
	if err != nil {
		return 0, err
	}

	resolved := 0
	for _, campaign := range campaigns {
		if campaign.DeployTxHash == nil {
			continue
		}
		addr, err := j.resolver.Resolve(ctx, *campaign.DeployTxHash)
		if err != nil {
			logger.Warn("Resolve deployment %s of %s failed: %v", *campaign.DeployTxHash, campaign.TaskId, err)
			continue
		}
		if addr == nil {
			logger.Debug("No creation event in %s for %s", *campaign.DeployTxHash, campaign.TaskId)
			continue
		}
		if err := j.campaigns.SetContractAddress(ctx, campaign.TaskId, addr.Hex()); err != nil {
			logger.Error("Write contract address of %s failed: %v", campaign.TaskId, err)
			continue
		}
		logger.Info("Campaign %s resolved to %s", campaign.TaskId, addr.Hex())
		resolved++
	}
	return resolved, nil
}
