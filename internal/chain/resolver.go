package chain

import (
	"context"

	"github.com/blues/cleanfund/internal/logger"
	"github.com/blues/cleanfund/internal/metrics"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// 地址解析来源
const (
	SourceEvent       = "event"
	SourceEnumeration = "enumeration"
	SourceNone        = "none"
)

// EnumerateFunc 读取工厂已创建的全部实例
type EnumerateFunc func(ctx context.Context) ([]common.Address, error)

// AddressFromCreationEvent 从回执日志中找工厂发出的创建事件，取其第一个参数
func AddressFromCreationEvent(factory *Contract, logs []*types.Log) (common.Address, bool) {
	event, ok := factory.GetABI().Events[CrowdfundCreatedEvent]
	if !ok || len(event.Inputs) == 0 {
		return common.Address{}, false
	}
	parsed, ok := factory.FindEvent(logs, CrowdfundCreatedEvent)
	if !ok {
		return common.Address{}, false
	}
	addr, ok := parsed[event.Inputs[0].Name].(common.Address)
	return addr, ok
}

// ResolveCrowdfundAddress 两级解析新实例地址：先解码创建事件，失败则取枚举结果的最后一个。
// 都失败时返回 nil。
func ResolveCrowdfundAddress(ctx context.Context, factory *Contract, logs []*types.Log, enumerate EnumerateFunc) (*common.Address, string) {
	if addr, ok := AddressFromCreationEvent(factory, logs); ok {
		metrics.AddressResolutions.WithLabelValues(SourceEvent).Inc()
		return &addr, SourceEvent
	}

	if enumerate != nil {
		all, err := enumerate(ctx)
		if err != nil {
			logger.Warn("Crowdfund enumeration failed: %v", err)
		} else if len(all) > 0 {
			last := all[len(all)-1]
			metrics.AddressResolutions.WithLabelValues(SourceEnumeration).Inc()
			return &last, SourceEnumeration
		}
	}

	metrics.AddressResolutions.WithLabelValues(SourceNone).Inc()
	return nil, SourceNone
}
