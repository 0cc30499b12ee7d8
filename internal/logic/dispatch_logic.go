package logic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blues/cleanfund/internal/config"
	apperrors "github.com/blues/cleanfund/internal/errors"
	"github.com/blues/cleanfund/internal/irlagents"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/blues/cleanfund/internal/model"
	"github.com/blues/cleanfund/internal/repository"
	"github.com/blues/cleanfund/internal/retry"
)

const (
	defaultQuerierId = 1000
	defaultToken     = "G$"

	// claimStaleAfter 派发中状态超过该时长视为进程中断，可重新抢占
	claimStaleAfter = 10 * time.Minute
)

// DispatchStore 派发标记的持久化
type DispatchStore interface {
	GetByTaskId(ctx context.Context, taskId string) (*model.CampaignModel, error)
	ClaimDispatch(ctx context.Context, taskId string, staleAfter time.Duration) (bool, model.DispatchStatus, error)
	CompleteDispatch(ctx context.Context, taskId string, at time.Time) error
	ReleaseDispatch(ctx context.Context, taskId string, retry model.DispatchRetry) error
}

// DispatchRecorder 派发审计记录
type DispatchRecorder interface {
	Create(ctx context.Context, record *model.DispatchRecordModel) error
}

// TaskClient 外部任务 API
type TaskClient interface {
	HasAPIKey() bool
	CreateTasks(ctx context.Context, tasks []irlagents.Task) (json.RawMessage, error)
}

// DispatchResult 派发结果
type DispatchResult struct {
	OK                bool             `json:"ok"`
	Message           string           `json:"message"`
	AlreadyDispatched bool             `json:"alreadyDispatched,omitempty"`
	Tasks             []irlagents.Task `json:"tasks,omitempty"`
	IrlAgentsResponse json.RawMessage  `json:"irlAgentsResponse,omitempty"`
}

// DispatchLogic 众筹完成后把任务转发给外部任务 API，每个活动最多成功派发一次
type DispatchLogic struct {
	store     DispatchStore
	records   DispatchRecorder
	client    TaskClient
	querierId int64
	token     string
	backoff   *retry.Backoff
	now       func() time.Time
}

func NewDispatchLogic(store DispatchStore, records DispatchRecorder, client TaskClient, cfg config.IrlAgentsConfig) *DispatchLogic {
	l := &DispatchLogic{
		store:     store,
		records:   records,
		client:    client,
		querierId: cfg.QuerierId,
		token:     cfg.Token,
		backoff:   retry.NewBackoff(cfg.MaxAttempts, cfg.RetryInitialDelay, cfg.RetryMaxDelay),
		now:       time.Now,
	}
	if l.querierId == 0 {
		l.querierId = defaultQuerierId
	}
	if l.token == "" {
		l.token = defaultToken
	}
	return l
}

// BuildTasks 按 photo_breakdown 每个条目生成一个任务；没有条目时生成一个以 total_cost 为奖励的任务
func BuildTasks(campaign *model.CampaignModel, querierId int64, token string) ([]irlagents.Task, error) {
	fields, err := campaign.DispatchFields()
	if err != nil {
		return nil, err
	}

	base := irlagents.Task{
		QuerierId: querierId,
		Prompt:    fields.GeneralDescription,
		Token:     token,
		Lat:       fields.Latitude,
		Lng:       fields.Longitude,
		Timeout:   fields.EstimatedTimeHours,
	}

	if len(fields.Breakdown) == 0 {
		task := base
		task.Reward = campaign.TotalCost
		return []irlagents.Task{task}, nil
	}

	tasks := make([]irlagents.Task, 0, len(fields.Breakdown))
	for _, subtotal := range fields.Breakdown {
		task := base
		task.Reward = subtotal
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// Dispatch 派发指定活动的任务
func (l *DispatchLogic) Dispatch(ctx context.Context, taskId string) (*DispatchResult, error) {
	campaign, err := l.store.GetByTaskId(ctx, taskId)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.ErrNotFound.WithError(err)
		}
		return nil, apperrors.FromError(err)
	}

	if campaign.IsDispatched() {
		logger.Info("Task %s already dispatched, skip", taskId)
		metrics.Dispatches.WithLabelValues("already_dispatched").Inc()
		return &DispatchResult{OK: true, Message: "Tasks already dispatched", AlreadyDispatched: true}, nil
	}

	tasks, err := BuildTasks(campaign, l.querierId, l.token)
	if err != nil {
		return nil, apperrors.ErrInternal.WithDetails(err.Error()).WithError(err)
	}

	if !l.client.HasAPIKey() {
		logger.Error("IRL Agents API key is not configured, cannot dispatch %s", taskId)
		metrics.Dispatches.WithLabelValues("missing_api_key").Inc()
		return nil, apperrors.ErrMissingAPIKey
	}

	claimed, status, err := l.store.ClaimDispatch(ctx, taskId, claimStaleAfter)
	if err != nil {
		return nil, apperrors.FromError(err)
	}
	if !claimed {
		if status == model.DispatchStatusDispatched {
			metrics.Dispatches.WithLabelValues("already_dispatched").Inc()
			return &DispatchResult{OK: true, Message: "Tasks already dispatched", AlreadyDispatched: true}, nil
		}
		metrics.Dispatches.WithLabelValues("in_progress").Inc()
		return nil, apperrors.ErrDispatchInProgress
	}

	logger.Info("Dispatching %d task(s) for %s", len(tasks), taskId)
	response, err := l.client.CreateTasks(ctx, tasks)
	if err != nil {
		return nil, l.fail(campaign, tasks, err)
	}

	// 外部任务已创建，标记写入不随请求取消
	persistCtx := context.WithoutCancel(ctx)
	if err := l.store.CompleteDispatch(persistCtx, taskId, l.now()); err != nil {
		logger.Error("Mark %s dispatched failed: %v", taskId, err)
	}
	l.record(persistCtx, &model.DispatchRecordModel{
		TaskId:     taskId,
		Status:     model.DispatchRecordSuccess,
		TaskCount:  len(tasks),
		HttpStatus: http.StatusOK,
		Response:   string(response),
	})
	metrics.Dispatches.WithLabelValues("success").Inc()
	metrics.DispatchedTasks.Add(float64(len(tasks)))

	return &DispatchResult{
		OK:                true,
		Message:           "Tasks created successfully",
		Tasks:             tasks,
		IrlAgentsResponse: response,
	}, nil
}

// fail 释放抢占并安排重试，记录失败并返回对外错误。
// 外部 API 拒绝请求 (4xx) 或失败次数用尽时放弃自动派发。
func (l *DispatchLogic) fail(campaign *model.CampaignModel, tasks []irlagents.Task, err error) error {
	ctx := context.Background()
	taskId := campaign.TaskId

	var apiErr *irlagents.APIError
	isAPIErr := errors.As(err, &apiErr)

	next := model.DispatchRetry{Status: model.DispatchStatusNone, Attempts: campaign.DispatchAttempts + 1}
	if (isAPIErr && apiErr.Permanent()) || l.backoff.Exhausted(next.Attempts) {
		next.Status = model.DispatchStatusAbandoned
		logger.Error("Dispatch of %s abandoned after %d attempt(s): %v", taskId, next.Attempts, err)
		metrics.Dispatches.WithLabelValues("abandoned").Inc()
	} else {
		at := l.now().Add(l.backoff.Delay(next.Attempts))
		next.NextAt = &at
		logger.Error("Dispatch of %s failed (attempt %d), next automatic attempt at %s: %v", taskId, next.Attempts, at.Format(time.RFC3339), err)
		metrics.Dispatches.WithLabelValues("failed").Inc()
	}
	if releaseErr := l.store.ReleaseDispatch(ctx, taskId, next); releaseErr != nil {
		logger.Error("Release dispatch claim of %s failed: %v", taskId, releaseErr)
	}

	record := &model.DispatchRecordModel{
		TaskId:    taskId,
		Status:    model.DispatchRecordFailed,
		TaskCount: len(tasks),
		Error:     err.Error(),
	}

	var appErr *apperrors.AppError
	switch {
	case isAPIErr:
		record.HttpStatus = apiErr.Status
		record.Response = apiErr.Body
		appErr = apperrors.ErrIrlAgentsAPI.WithDetails(apiErr.Body).WithStatus(apiErr.Status).WithError(err)
	case errors.Is(err, irlagents.ErrMissingAPIKey):
		appErr = apperrors.ErrMissingAPIKey.WithError(err)
	default:
		appErr = apperrors.FromError(err)
	}
	l.record(ctx, record)
	return appErr
}

func (l *DispatchLogic) record(ctx context.Context, record *model.DispatchRecordModel) {
	if l.records == nil {
		return
	}
	if err := l.records.Create(ctx, record); err != nil {
		logger.Warn("Write dispatch record for %s failed: %v", record.TaskId, err)
	}
}

// DispatchFunc 供完成观察者和定时任务调用
func (l *DispatchLogic) DispatchFunc() func(ctx context.Context, taskId string) error {
	return func(ctx context.Context, taskId string) error {
		_, err := l.Dispatch(ctx, taskId)
		return err
	}
}
