package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blues/cleanfund/internal/logger"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Contract 合约工具类，封装 BoundContract 和事件解析
type Contract struct {
	address common.Address
	abi     abi.ABI
	name    string
	bound   *bind.BoundContract
}

// NewContract 创建合约实例；backend 为空时只能用于事件解析
func NewContract(backend bind.ContractBackend, name string, address common.Address, parsed abi.ABI) *Contract {
	c := &Contract{
		address: address,
		abi:     parsed,
		name:    name,
	}
	if backend != nil {
		c.bound = bind.NewBoundContract(address, parsed, backend, backend, backend)
	}
	return c
}

// GetAddress 获取合约地址
func (c *Contract) GetAddress() common.Address {
	return c.address
}

// GetABI 获取合约ABI
func (c *Contract) GetABI() abi.ABI {
	return c.abi
}

// Call 只读调用
func (c *Contract) Call(ctx context.Context, method string, params ...interface{}) ([]interface{}, error) {
	if c.bound == nil {
		return nil, fmt.Errorf("contract %s has no backend", c.name)
	}
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, params...); err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", c.name, method, err)
	}
	return out, nil
}

// Transact 发送交易
func (c *Contract) Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error) {
	if c.bound == nil {
		return nil, fmt.Errorf("contract %s has no backend", c.name)
	}
	return c.bound.Transact(opts, method, params...)
}

// FindEvent 在日志中查找本合约发出的指定事件，返回第一条的解析结果
func (c *Contract) FindEvent(logs []*types.Log, eventName string) (map[string]interface{}, bool) {
	event, ok := c.abi.Events[eventName]
	if !ok {
		return nil, false
	}
	for _, log := range logs {
		if log == nil || len(log.Topics) == 0 {
			continue
		}
		if log.Address != c.address || log.Topics[0] != event.ID {
			continue
		}
		parsed, err := c.parseEvent(eventName, *log, event)
		if err != nil {
			logger.Debug("Skip undecodable %s log in tx %s: %v", eventName, log.TxHash.Hex(), err)
			continue
		}
		return parsed, true
	}
	return nil, false
}

// parseEvent 按ABI解码索引参数和非索引参数
func (c *Contract) parseEvent(eventName string, log types.Log, event abi.Event) (map[string]interface{}, error) {
	result := map[string]interface{}{
		"eventName":   eventName,
		"contract":    c.name,
		"txHash":      log.TxHash.Hex(),
		"blockNumber": log.BlockNumber,
		"logIndex":    log.Index,
	}

	topicIdx := 1
	for _, input := range event.Inputs {
		if !input.Indexed {
			continue
		}
		if topicIdx >= len(log.Topics) {
			return nil, fmt.Errorf("event %s: missing topic for %s", eventName, input.Name)
		}
		result[input.Name] = parseTopicValue(log.Topics[topicIdx], input.Type)
		topicIdx++
	}

	nonIndexed := event.Inputs.NonIndexed()
	if len(nonIndexed) > 0 {
		values, err := nonIndexed.Unpack(log.Data)
		if err != nil {
			return nil, fmt.Errorf("event %s: unpack data: %w", eventName, err)
		}
		for i, input := range nonIndexed {
			if i < len(values) {
				result[input.Name] = values[i]
			}
		}
	}

	return result, nil
}

// parseTopicValue 解析主题值
func parseTopicValue(topic common.Hash, t abi.Type) interface{} {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		return new(big.Int).SetBytes(topic.Bytes())
	case abi.AddressTy:
		return common.BytesToAddress(topic.Bytes())
	case abi.BoolTy:
		return new(big.Int).SetBytes(topic.Bytes()).Sign() > 0
	default:
		return topic
	}
}
