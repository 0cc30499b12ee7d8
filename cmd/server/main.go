package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/funding"
	"github.com/blues/cleanfund/internal/irlagents"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/logic"
	"github.com/blues/cleanfund/internal/repository"
	"github.com/blues/cleanfund/internal/router"
	"github.com/blues/cleanfund/internal/task"
	"github.com/gin-gonic/gin"
)

func main() {
	// 加载配置
	cfg := config.Load()

	if err := logger.Init(cfg.Log); err != nil {
		logger.Fatal("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize database: %v", err)
	}
	campaigns := repository.NewCampaignRepository(db)
	records := repository.NewDispatchRecordRepository(db)

	// 链访问延迟到首次使用时建立
	provider := chain.NewProvider(cfg.Chain)
	defer provider.Close()
	reader := funding.NewChainReader(provider)

	irlClient := irlagents.NewClient(cfg.IrlAgents.BaseURL, cfg.IrlAgents.APIKey, cfg.IrlAgents.Timeout)
	campaignLogic := logic.NewCampaignLogic(campaigns, cfg.Chain, logic.ProviderDeployerFactory(provider), reader).
		WithDispatchHistory(records)
	dispatchLogic := logic.NewDispatchLogic(campaigns, records, irlClient, cfg.IrlAgents)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := router.Setup(router.Services{
		Campaigns:  campaignLogic,
		Dispatches: dispatchLogic,
		Health:     chainHealth(provider),
	})

	// 启动定时任务
	tasks, err := task.NewManager(jobs(cfg, campaigns, provider, reader, dispatchLogic)...)
	if err != nil {
		logger.Fatal("Failed to create task manager: %v", err)
	}
	tasks.Start()
	defer tasks.Stop()

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: r,
	}
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
}

// jobs 按配置启用后台任务；缺少链配置时不启用
func jobs(cfg *config.Config, campaigns *repository.CampaignRepository, provider *chain.Provider, reader *funding.ChainReader, dispatchLogic *logic.DispatchLogic) []task.Job {
	if missing := cfg.Chain.MissingReadEnv(); len(missing) > 0 {
		logger.Info("Chain access not configured, background jobs disabled")
		return nil
	}

	var out []task.Job
	if cfg.Task.WatchCompletion {
		out = append(out, task.NewCompletionWatchJob(campaigns, reader, dispatchLogic.DispatchFunc(), cfg.Task))
	}
	if cfg.Task.ResolveDeploy {
		out = append(out, task.NewDeploymentResolveJob(campaigns, task.NewProviderResolver(provider), cfg.Task))
	}
	return out
}

func chainHealth(provider *chain.Provider) router.HealthFunc {
	return func(ctx context.Context) map[string]interface{} {
		manager, err := provider.Get(ctx)
		if err != nil {
			return map[string]interface{}{"client_status": "unavailable", "error": err.Error()}
		}
		return manager.GetHealthStatus(ctx)
	}
}
