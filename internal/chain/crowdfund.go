package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// CrowdfundInstance 众筹实例的类型化读写
type CrowdfundInstance struct {
	contract *Contract
}

func NewCrowdfundInstance(contract *Contract) *CrowdfundInstance {
	return &CrowdfundInstance{contract: contract}
}

func (c *CrowdfundInstance) Address() common.Address {
	return c.contract.GetAddress()
}

func (c *CrowdfundInstance) TargetAmount(ctx context.Context) (*big.Int, error) {
	return callBigInt(ctx, c.contract, "targetAmount")
}

func (c *CrowdfundInstance) TotalRaised(ctx context.Context) (*big.Int, error) {
	return callBigInt(ctx, c.contract, "totalRaised")
}

func (c *CrowdfundInstance) IsCompleted(ctx context.Context) (bool, error) {
	out, err := c.contract.Call(ctx, "isCompleted")
	if err != nil {
		return false, err
	}
	return firstOutput[bool](out, "isCompleted")
}

func (c *CrowdfundInstance) ReceiverAddress(ctx context.Context) (common.Address, error) {
	return callAddress(ctx, c.contract, "receiverAddress")
}

func (c *CrowdfundInstance) Token(ctx context.Context) (common.Address, error) {
	return callAddress(ctx, c.contract, "token")
}

func (c *CrowdfundInstance) Donate(opts *bind.TransactOpts, amount *big.Int) (*types.Transaction, error) {
	return c.contract.Transact(opts, "donate", amount)
}

func (c *CrowdfundInstance) Withdraw(opts *bind.TransactOpts) (*types.Transaction, error) {
	return c.contract.Transact(opts, "withdraw")
}

// TokenContract ERC20 支付代币
type TokenContract struct {
	contract *Contract
}

func NewTokenContract(contract *Contract) *TokenContract {
	return &TokenContract{contract: contract}
}

func (t *TokenContract) Address() common.Address {
	return t.contract.GetAddress()
}

func (t *TokenContract) Decimals(ctx context.Context) (uint8, error) {
	out, err := t.contract.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	return firstOutput[uint8](out, "decimals")
}

func (t *TokenContract) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return callBigInt(ctx, t.contract, "balanceOf", account)
}

func (t *TokenContract) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return callBigInt(ctx, t.contract, "allowance", owner, spender)
}

func (t *TokenContract) Approve(opts *bind.TransactOpts, spender common.Address, amount *big.Int) (*types.Transaction, error) {
	return t.contract.Transact(opts, "approve", spender, amount)
}

func callBigInt(ctx context.Context, c *Contract, method string, params ...interface{}) (*big.Int, error) {
	out, err := c.Call(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	return firstOutput[*big.Int](out, method)
}

func callAddress(ctx context.Context, c *Contract, method string, params ...interface{}) (common.Address, error) {
	out, err := c.Call(ctx, method, params...)
	if err != nil {
		return common.Address{}, err
	}
	return firstOutput[common.Address](out, method)
}

func firstOutput[T any](out []interface{}, method string) (T, error) {
	var zero T
	if len(out) == 0 {
		return zero, fmt.Errorf("%s returned no values", method)
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%s returned %T", method, out[0])
	}
	return v, nil
}
