package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/blues/cleanfund/internal/config"
)

// ErrNotConfigured 缺少链上只读操作所需的配置
var ErrNotConfigured = errors.New("chain access is not configured")

// Provider 延迟创建并缓存 Manager，连接失败不缓存
type Provider struct {
	mu      sync.Mutex
	cfg     config.ChainConfig
	manager *Manager
}

func NewProvider(cfg config.ChainConfig) *Provider {
	return &Provider{cfg: cfg}
}

// Config 链配置
func (p *Provider) Config() config.ChainConfig {
	return p.cfg
}

// Get 获取 Manager，首次调用时连接节点
func (p *Provider) Get(ctx context.Context) (*Manager, error) {
	if missing := p.cfg.MissingReadEnv(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrNotConfigured, strings.Join(missing, ", "))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager != nil {
		return p.manager, nil
	}
	m, err := NewManager(ctx, p.cfg)
	if err != nil {
		return nil, err
	}
	p.manager = m
	return m, nil
}

// Deployer 创建工厂部署器
func (p *Provider) Deployer(ctx context.Context) (*FactoryDeployer, error) {
	m, err := p.Get(ctx)
	if err != nil {
		return nil, err
	}
	return NewFactoryDeployer(m), nil
}

// Close 关闭已创建的 Manager
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manager != nil {
		p.manager.Close()
		p.manager = nil
	}
}
