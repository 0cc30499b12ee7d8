package config

import (
	"strings"
	"time"

	"github.com/blues/cleanfund/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 部署和派发依赖的环境变量名
const (
	EnvPrivateKey     = "PRIVATE_KEY"
	EnvFactoryAddress = "FACTORY_ADDRESS"
	EnvRpcUrl         = "RPC_URL"
	EnvIrlAgentsKey   = "IRL_AGENTS_API_KEY"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Chain     ChainConfig     `mapstructure:"chain"`
	IrlAgents IrlAgentsConfig `mapstructure:"irl_agents"`
	Task      TaskConfig      `mapstructure:"task"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 单链配置
type ChainConfig struct {
	ChainType        string `mapstructure:"chain_type"`      // 链类型 (ethereum, polygon, celo, etc.)
	ChainId          int64  `mapstructure:"chain_id"`        // 链ID，0 表示从节点读取
	RpcUrl           string `mapstructure:"rpc_url"`         // RPC节点URL
	PrivateKey       string `mapstructure:"private_key"`     // 部署私钥
	FactoryAddress   string `mapstructure:"factory_address"` // 众筹工厂合约地址
	FactoryABIPath   string `mapstructure:"factory_abi_path"`
	CrowdfundABIPath string `mapstructure:"crowdfund_abi_path"`
	TokenABIPath     string `mapstructure:"token_abi_path"`
	TargetDecimals   int    `mapstructure:"target_decimals"` // 目标金额的精度
}

// MissingDeployEnv 返回部署合约所需但未配置的环境变量名
func (c ChainConfig) MissingDeployEnv() []string {
	var missing []string
	if strings.TrimSpace(c.PrivateKey) == "" {
		missing = append(missing, EnvPrivateKey)
	}
	if strings.TrimSpace(c.FactoryAddress) == "" {
		missing = append(missing, EnvFactoryAddress)
	}
	if strings.TrimSpace(c.RpcUrl) == "" {
		missing = append(missing, EnvRpcUrl)
	}
	return missing
}

// MissingReadEnv 返回链上只读操作所需但未配置的环境变量名
func (c ChainConfig) MissingReadEnv() []string {
	if strings.TrimSpace(c.RpcUrl) == "" {
		return []string{EnvRpcUrl}
	}
	return nil
}

// IrlAgentsConfig 外部任务派发 API 配置
type IrlAgentsConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	QuerierId int64         `mapstructure:"querier_id"`
	Token     string        `mapstructure:"token"`
	Timeout   time.Duration `mapstructure:"timeout"`

	// 自动派发失败后的退避重试
	MaxAttempts       int           `mapstructure:"max_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"`
}

type TaskConfig struct {
	Interval        int  `mapstructure:"interval"` // 秒
	WatchCompletion bool `mapstructure:"watch_completion"`
	ResolveDeploy   bool `mapstructure:"resolve_deploy"`
	PoolSize        int  `mapstructure:"pool_size"`
	BatchSize       int  `mapstructure:"batch_size"` // 每次检查的活动数，按 id 游标轮转
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// Load 加载配置：.env -> config.yaml -> 环境变量
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file loaded: %v", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/cleanfund")

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Could not read config file: %v", err)
	}

	cfg, err := decode(v)
	if err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "cleanfund")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.chain_type", "celo")
	v.SetDefault("chain.chain_id", 0)
	v.SetDefault("chain.target_decimals", 18)
	v.SetDefault("irl_agents.base_url", "https://api.irl-agents.xyz")
	v.SetDefault("irl_agents.querier_id", 1000)
	v.SetDefault("irl_agents.token", "G$")
	v.SetDefault("irl_agents.timeout", "30s")
	v.SetDefault("irl_agents.max_attempts", 8)
	v.SetDefault("irl_agents.retry_initial_delay", "1m")
	v.SetDefault("irl_agents.retry_max_delay", "6h")
	v.SetDefault("task.interval", 60)
	v.SetDefault("task.watch_completion", true)
	v.SetDefault("task.resolve_deploy", true)
	v.SetDefault("task.pool_size", 8)
	v.SetDefault("task.batch_size", 200)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// bindEnv 绑定与前端部署一致的环境变量名
func bindEnv(v *viper.Viper) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("chain.private_key", EnvPrivateKey)
	_ = v.BindEnv("chain.factory_address", EnvFactoryAddress)
	_ = v.BindEnv("chain.rpc_url", EnvRpcUrl)
	_ = v.BindEnv("irl_agents.api_key", EnvIrlAgentsKey)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
