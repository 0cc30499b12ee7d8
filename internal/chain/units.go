package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ParseUnits 将十进制金额按精度放大为链上整数
func ParseUnits(amount decimal.Decimal, decimals int) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount %s is negative", amount.String())
	}
	scaled := amount.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount.String(), decimals)
	}
	return scaled.BigInt(), nil
}

// ParseUnitsString 解析字符串金额
func ParseUnitsString(amount string, decimals int) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return ParseUnits(d, decimals)
}

// ParseUnitsFloat 解析浮点金额，使用最短十进制表示
func ParseUnitsFloat(amount float64, decimals int) (*big.Int, error) {
	return ParseUnits(decimal.NewFromFloat(amount), decimals)
}

// FormatUnits 将链上整数按精度还原为十进制字符串
func FormatUnits(value *big.Int, decimals int) string {
	if value == nil {
		return "-"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}
