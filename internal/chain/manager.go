package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

var (
	// ErrNoSigner 未配置私钥时无法发送交易
	ErrNoSigner = errors.New("no private key configured")
	// ErrReverted 交易已上链但执行失败
	ErrReverted = errors.New("transaction reverted")
)

// supportedChainTypes 支持的 EVM 链类型
var supportedChainTypes = []string{"ethereum", "polygon", "bsc", "arbitrum", "optimism", "celo"}

// Manager 单链管理器，持有客户端、签名私钥和已解析的ABI
type Manager struct {
	mu         sync.RWMutex
	client     *ethclient.Client
	config     config.ChainConfig
	chainId    *big.Int
	privateKey *ecdsa.PrivateKey

	factoryABI   abi.ABI
	crowdfundABI abi.ABI
	tokenABI     abi.ABI
}

// NewManager 创建单链管理器，连接节点并加载ABI
func NewManager(ctx context.Context, cfg config.ChainConfig) (*Manager, error) {
	if err := validateChainType(cfg.ChainType); err != nil {
		return nil, err
	}

	m := &Manager{config: cfg}
	if err := m.loadABIs(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.PrivateKey) != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(cfg.PrivateKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		m.privateKey = key
	}

	if err := m.initClient(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize client: %w", err)
	}

	return m, nil
}

func validateChainType(chainType string) error {
	for _, t := range supportedChainTypes {
		if chainType == t {
			return nil
		}
	}
	return fmt.Errorf("unsupported chain type %s, supported types: %s", chainType, strings.Join(supportedChainTypes, ", "))
}

func (m *Manager) loadABIs(cfg config.ChainConfig) error {
	var err error
	if m.factoryABI, err = LoadABI(cfg.FactoryABIPath, FactoryABI); err != nil {
		return fmt.Errorf("factory ABI: %w", err)
	}
	if m.crowdfundABI, err = LoadABI(cfg.CrowdfundABIPath, CrowdfundABI); err != nil {
		return fmt.Errorf("crowdfund ABI: %w", err)
	}
	if m.tokenABI, err = LoadABI(cfg.TokenABIPath, TokenABI); err != nil {
		return fmt.Errorf("token ABI: %w", err)
	}
	return nil
}

// initClient 连接节点并确定链ID
func (m *Manager) initClient(ctx context.Context, cfg config.ChainConfig) error {
	if cfg.RpcUrl == "" {
		return fmt.Errorf("no RPC URL configured")
	}

	logger.Info("Creating %s client connection", cfg.ChainType)
	client, err := ethclient.DialContext(ctx, cfg.RpcUrl)
	if err != nil {
		return fmt.Errorf("failed to create %s client: %w", cfg.ChainType, err)
	}

	if cfg.ChainId > 0 {
		m.chainId = big.NewInt(cfg.ChainId)
	} else {
		chainId, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			return fmt.Errorf("client connection test failed (%s): %w", cfg.ChainType, err)
		}
		m.chainId = chainId
	}

	m.client = client
	logger.Info("Successfully created %s client (chain id: %s)", cfg.ChainType, m.chainId.String())
	return nil
}

// GetConfig 获取链配置
func (m *Manager) GetConfig() config.ChainConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetChainId 获取链ID
func (m *Manager) GetChainId() *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return new(big.Int).Set(m.chainId)
}

// SignerAddress 签名账户地址
func (m *Manager) SignerAddress() (common.Address, error) {
	if m.privateKey == nil {
		return common.Address{}, ErrNoSigner
	}
	return crypto.PubkeyToAddress(m.privateKey.PublicKey), nil
}

// Factory 工厂合约
func (m *Manager) Factory() *Contract {
	return NewContract(m.client, ContractFactory, common.HexToAddress(m.config.FactoryAddress), m.factoryABI)
}

// Crowdfund 指定地址的众筹实例合约
func (m *Manager) Crowdfund(address common.Address) *Contract {
	return NewContract(m.client, ContractCrowdfund, address, m.crowdfundABI)
}

// Token 指定地址的支付代币合约
func (m *Manager) Token(address common.Address) *Contract {
	return NewContract(m.client, ContractToken, address, m.tokenABI)
}

// TransactOpts 使用配置私钥生成交易参数
func (m *Manager) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	if m.privateKey == nil {
		return nil, ErrNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(m.privateKey, m.GetChainId())
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// WaitMined 等待交易上链，回执状态失败时返回错误
func (m *Manager) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	timer := metrics.StartChainCall("wait_mined")
	receipt, err := bind.WaitMined(ctx, m.client, tx)
	timer.Done(err)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	return receipt, nil
}

// Receipt 按交易哈希读取回执
func (m *Manager) Receipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	timer := metrics.StartChainCall("receipt")
	receipt, err := m.client.TransactionReceipt(ctx, txHash)
	timer.Done(err)
	return receipt, err
}

// EnumerateCrowdfunds 读取工厂已创建的全部实例地址
func (m *Manager) EnumerateCrowdfunds(ctx context.Context) ([]common.Address, error) {
	timer := metrics.StartChainCall("get_crowdfunds")
	out, err := m.Factory().Call(ctx, "getCrowdfunds")
	timer.Done(err)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	addrs, ok := out[0].([]common.Address)
	if !ok {
		return nil, fmt.Errorf("unexpected getCrowdfunds output type %T", out[0])
	}
	return addrs, nil
}

// GetHealthStatus 获取健康状态，节点请求不持有锁
func (m *Manager) GetHealthStatus(ctx context.Context) map[string]interface{} {
	m.mu.RLock()
	cfg := m.config
	chainId := m.chainId.String()
	client := m.client
	m.mu.RUnlock()

	health := map[string]interface{}{
		"chain_type":    cfg.ChainType,
		"chain_id":      chainId,
		"client_status": "connected",
		"factory":       cfg.FactoryAddress,
	}
	if client == nil {
		health["client_status"] = "not_initialized"
	} else if block, err := client.BlockNumber(ctx); err != nil {
		health["client_status"] = "disconnected"
	} else {
		health["block_number"] = block
	}
	return health
}

// Close 关闭管理器
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		m.client.Close()
	}
	logger.Info("Chain manager closed")
}
