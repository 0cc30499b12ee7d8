package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/blues/cleanfund/internal/chain"
	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/funding"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/pflag"
)

// targetOptions 通过合约地址或 task_id 指定众筹实例
type targetOptions struct {
	contract string
	taskId   string
}

func (t *targetOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&t.contract, "contract", "", "crowdfund instance address")
	fs.StringVar(&t.taskId, "task-id", "", "task id, resolved to its contract address through the server")
}

// resolve 未给出合约地址时从服务端详情读取
func (t *targetOptions) resolve(ctx context.Context, api *apiClient) (common.Address, error) {
	if t.contract != "" {
		if !common.IsHexAddress(t.contract) {
			return common.Address{}, fmt.Errorf("invalid contract address %q", t.contract)
		}
		return common.HexToAddress(t.contract), nil
	}
	if t.taskId == "" {
		return common.Address{}, fmt.Errorf("either --contract or --task-id is required")
	}

	detail, err := api.campaign(ctx, t.taskId)
	if err != nil {
		return common.Address{}, err
	}
	addr := detail.Crowdfunding.ContractAddress
	if addr == nil || *addr == "" {
		return common.Address{}, fmt.Errorf("campaign %s has no deployed contract yet", t.taskId)
	}
	return common.HexToAddress(*addr), nil
}

// openWidget 连接节点并创建 Widget；配置了 PRIVATE_KEY 时可签名
func openWidget(ctx context.Context, g *globalOptions, target *targetOptions, opts ...funding.Option) (*funding.Widget, *chain.Provider, error) {
	addr, err := target.resolve(ctx, g.client())
	if err != nil {
		return nil, nil, err
	}

	cfg := config.Load()
	provider := chain.NewProvider(cfg.Chain)
	manager, err := provider.Get(ctx)
	if err != nil {
		return nil, nil, err
	}
	return funding.NewChainWidget(manager, addr, opts...), provider, nil
}

// snapshotOutput 快照的可读输出
func snapshotOutput(s funding.Snapshot) map[string]interface{} {
	out := map[string]interface{}{
		"contract":    s.ContractAddress.Hex(),
		"target":      s.Format(s.Target),
		"raised":      s.Format(s.Raised),
		"completed":   s.Completed,
		"receiver":    s.Receiver.Hex(),
		"token":       s.Token.Hex(),
		"decimals":    s.Decimals,
		"canWithdraw": s.CanWithdraw(),
	}
	if s.Account != nil {
		out["account"] = s.Account.Hex()
		out["balance"] = s.Format(s.Balance)
		out["allowance"] = s.Format(s.Allowance)
	}
	return out
}

// resultOutput 交易结果的可读输出
func resultOutput(r funding.TxResult) map[string]interface{} {
	out := map[string]interface{}{
		"action": r.Action,
		"stage":  r.Stage,
		"ok":     r.OK(),
	}
	if r.ApproveTxHash != nil {
		out["approveTxHash"] = r.ApproveTxHash.Hex()
	}
	if r.TxHash != nil {
		out["txHash"] = r.TxHash.Hex()
	}
	if r.Err != nil {
		out["error"] = r.Err.Error()
	}
	return out
}

func runStatus(ctx context.Context, g *globalOptions, args []string) error {
	var target targetOptions
	fs := pflag.NewFlagSet("status", pflag.ContinueOnError)
	g.bind(fs)
	target.bind(fs)
	account := fs.String("account", "", "account to read balance and allowance for (default: signer)")
	if err := g.parse(fs, args); err != nil {
		return err
	}

	var opts []funding.Option
	if *account != "" {
		if !common.IsHexAddress(*account) {
			return fmt.Errorf("invalid account %q", *account)
		}
		opts = append(opts, funding.WithAccount(common.HexToAddress(*account)))
	}

	w, provider, err := openWidget(ctx, g, &target, opts...)
	if err != nil {
		return err
	}
	defer provider.Close()

	s, err := w.Refresh(ctx)
	if err != nil {
		return err
	}
	return printJSON(snapshotOutput(s))
}

func runDonate(ctx context.Context, g *globalOptions, args []string) error {
	var target targetOptions
	fs := pflag.NewFlagSet("donate", pflag.ContinueOnError)
	g.bind(fs)
	target.bind(fs)
	amount := fs.String("amount", "", "amount in token units, e.g. 12.5")
	if err := g.parse(fs, args); err != nil {
		return err
	}
	if strings.TrimSpace(*amount) == "" {
		return fmt.Errorf("--amount is required")
	}

	w, provider, err := openWidget(ctx, g, &target)
	if err != nil {
		return err
	}
	defer provider.Close()

	return finish(w, w.Donate(ctx, *amount))
}

func runWithdraw(ctx context.Context, g *globalOptions, args []string) error {
	var target targetOptions
	fs := pflag.NewFlagSet("withdraw", pflag.ContinueOnError)
	g.bind(fs)
	target.bind(fs)
	if err := g.parse(fs, args); err != nil {
		return err
	}

	w, provider, err := openWidget(ctx, g, &target)
	if err != nil {
		return err
	}
	defer provider.Close()

	return finish(w, w.Withdraw(ctx))
}

// finish 输出交易结果和刷新后的快照
func finish(w *funding.Widget, r funding.TxResult) error {
	out := resultOutput(r)
	if r.OK() {
		out["snapshot"] = snapshotOutput(w.Snapshot())
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if !r.OK() {
		return fmt.Errorf("%s failed at %s: %w", r.Action, r.Stage, r.Err)
	}
	return nil
}

func runWatch(ctx context.Context, g *globalOptions, args []string) error {
	var target targetOptions
	fs := pflag.NewFlagSet("watch", pflag.ContinueOnError)
	g.bind(fs)
	target.bind(fs)
	every := fs.Duration("interval", 15*time.Second, "poll interval")
	if err := g.parse(fs, args); err != nil {
		return err
	}
	if target.taskId == "" {
		return fmt.Errorf("--task-id is required to dispatch on completion")
	}

	api := g.client()
	watcher := funding.NewCompletionWatcher(target.taskId, api.dispatch)
	w, provider, err := openWidget(ctx, g, &target, funding.WithWatcher(watcher))
	if err != nil {
		return err
	}
	defer provider.Close()

	ticker := time.NewTicker(*every)
	defer ticker.Stop()
	for {
		s, err := w.Refresh(ctx)
		if err != nil {
			logger.Warn("Refresh %s failed: %v", target.taskId, err)
		} else {
			logger.Info("Crowdfund %s raised %s of %s", s.ContractAddress.Hex(), s.Format(s.Raised), s.Format(s.Target))
		}
		if watcher.Fired() {
			return printJSON(snapshotOutput(s))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
