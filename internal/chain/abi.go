package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// 合约名称
const (
	ContractFactory   = "CrowdFundFactory"
	ContractCrowdfund = "Crowdfund"
	ContractToken     = "Token"
)

// CrowdfundCreatedEvent 工厂创建实例时发出的事件
const CrowdfundCreatedEvent = "CrowdfundCreated"

// FactoryABI 众筹工厂合约ABI（仅包含本服务用到的部分）
const FactoryABI = `[
	{
		"inputs": [
			{"internalType": "address", "name": "receiver", "type": "address"},
			{"internalType": "uint256", "name": "targetAmount", "type": "uint256"}
		],
		"name": "createCrowdfund",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getCrowdfunds",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "crowdfund", "type": "address"},
			{"indexed": true, "internalType": "address", "name": "receiver", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "targetAmount", "type": "uint256"}
		],
		"name": "CrowdfundCreated",
		"type": "event"
	}
]`

// CrowdfundABI 众筹实例合约ABI
const CrowdfundABI = `[
	{"inputs": [], "name": "targetAmount", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "totalRaised", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "isCompleted", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "receiverAddress", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "token", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"internalType": "uint256", "name": "amount", "type": "uint256"}], "name": "donate", "outputs": [], "stateMutability": "nonpayable", "type": "function"},
	{"inputs": [], "name": "withdraw", "outputs": [], "stateMutability": "nonpayable", "type": "function"}
]`

// TokenABI ERC20 支付代币ABI
const TokenABI = `[
	{"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"internalType": "address", "name": "account", "type": "address"}], "name": "balanceOf", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"internalType": "address", "name": "owner", "type": "address"}, {"internalType": "address", "name": "spender", "type": "address"}], "name": "allowance", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [{"internalType": "address", "name": "spender", "type": "address"}, {"internalType": "uint256", "name": "value", "type": "uint256"}], "name": "approve", "outputs": [{"internalType": "bool", "name": "", "type": "bool"}], "stateMutability": "nonpayable", "type": "function"}
]`

// LoadABI 从文件加载ABI，未配置路径时使用内置定义
func LoadABI(path, fallback string) (abi.ABI, error) {
	if strings.TrimSpace(path) == "" {
		return abi.JSON(strings.NewReader(fallback))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to load ABI from %s: %w", path, err)
	}
	return ParseABI(data)
}

// ParseABI 支持完整编译输出（含 abi 字段）或纯ABI数组
func ParseABI(data []byte) (abi.ABI, error) {
	var compiledOutput struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &compiledOutput); err == nil && compiledOutput.ABI != nil {
		parsed, err := abi.JSON(bytes.NewReader(compiledOutput.ABI))
		if err != nil {
			return abi.ABI{}, fmt.Errorf("failed to parse ABI from compiled output: %w", err)
		}
		return parsed, nil
	}

	parsed, err := abi.JSON(bytes.NewReader(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}
