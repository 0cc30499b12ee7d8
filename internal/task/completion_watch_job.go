package task

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/blues/cleanfund/internal/model"
	"github.com/go-co-op/gocron/v2"
	"github.com/panjf2000/ants/v2"
)

const (
	completionWatchJobName = "completion_watch"
	completionWatchBatch   = 200
)

// PendingDispatchLister 列出已部署未派发且已到重试时间的活动，id 大于 afterId
type PendingDispatchLister interface {
	ListPendingDispatch(ctx context.Context, afterId int64, now time.Time, limit int) ([]model.CampaignModel, error)
}

// CompletionChecker 读取链上完成标记
type CompletionChecker interface {
	IsCompleted(ctx context.Context, contractAddress string) (bool, error)
}

// DispatchFunc 派发指定活动
type DispatchFunc func(ctx context.Context, taskId string) error

// CompletionWatchJob 定期检查已部署活动是否达成目标，达成即派发任务
type CompletionWatchJob struct {
	campaigns PendingDispatchLister
	checker   CompletionChecker
	dispatch  DispatchFunc
	config    config.TaskConfig
	batch     int

	// cursor 上一批最后一个 id，一轮检查完后归零；调度为单例模式，不会并发访问
	cursor int64
}

func NewCompletionWatchJob(campaigns PendingDispatchLister, checker CompletionChecker, dispatch DispatchFunc, cfg config.TaskConfig) *CompletionWatchJob {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = completionWatchBatch
	}
	return &CompletionWatchJob{
		campaigns: campaigns,
		checker:   checker,
		dispatch:  dispatch,
		config:    cfg,
		batch:     batch,
	}
}

// GetName 获取任务名称
func (j *CompletionWatchJob) GetName() string {
	return completionWatchJobName
}

// GetSchedule 获取调度配置
func (j *CompletionWatchJob) GetSchedule() gocron.JobDefinition {
	return gocron.DurationJob(interval(j.config))
}

// Execute 执行任务
func (j *CompletionWatchJob) Execute() {
	start := time.Now()
	defer metrics.ObserveJob(completionWatchJobName, start)

	dispatched, err := j.Run(context.Background())
	if err != nil {
		logger.Error("Completion watch failed: %v", err)
		return
	}
	logger.Debug("Completion watch finished, dispatched %d campaign(s) in %s", dispatched, time.Since(start))
}

// Run 检查游标之后的一批活动，并发读取完成标记并派发已完成的活动，返回成功派发的数量
func (j *CompletionWatchJob) Run(ctx context.Context) (int, error) {
	campaigns, err := j.campaigns.ListPendingDispatch(ctx, j.cursor, time.Now(), j.batch)
	if err != nil {
		return 0, err
	}
	if len(campaigns) < j.batch {
		j.cursor = 0
	} else {
		j.cursor = campaigns[len(campaigns)-1].Id
	}
	if len(campaigns) == 0 {
		return 0, nil
	}

	size := j.config.PoolSize
	if size <= 0 || size > len(campaigns) {
		size = len(campaigns)
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var (
		wg         sync.WaitGroup
		dispatched atomic.Int64
	)
	for i := range campaigns {
		campaign := campaigns[i]
		if !campaign.IsDeployed() {
			continue
		}

		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			if j.checkAndDispatch(ctx, &campaign) {
				dispatched.Add(1)
			}
		})
		if err != nil {
			wg.Done()
			logger.Error("Failed to submit completion check for %s: %v", campaign.TaskId, err)
		}
	}
	wg.Wait()

	return int(dispatched.Load()), nil
}

func (j *CompletionWatchJob) checkAndDispatch(ctx context.Context, campaign *model.CampaignModel) bool {
	completed, err := j.checker.IsCompleted(ctx, *campaign.ContractAddress)
	if err != nil {
		logger.Warn("Read isCompleted of %s (%s) failed: %v", campaign.TaskId, *campaign.ContractAddress, err)
		return false
	}
	if !completed {
		return false
	}

	logger.Info("Crowdfund %s of %s completed, dispatching", *campaign.ContractAddress, campaign.TaskId)
	if err := j.dispatch(ctx, campaign.TaskId); err != nil {
		logger.Error("Dispatch of %s failed, will retry next run: %v", campaign.TaskId, err)
		return false
	}
	return true
}
