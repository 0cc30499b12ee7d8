package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/cleanfund/internal/config"
	"github.com/blues/cleanfund/internal/logger"
	"github.com/spf13/pflag"
)

const usage = `cfctl - cleanup crowdfunding command line

Usage:
  cfctl <command> [flags]

Commands:
  create     build a campaign payload and submit it to the server
  show       print a campaign with its funding snapshot
  status     read on-chain funding projections
  donate     approve if needed, then donate to a crowdfund
  withdraw   withdraw a completed crowdfund as its receiver
  watch      poll a crowdfund and dispatch its task once completed
`

type command func(ctx context.Context, g *globalOptions, args []string) error

var commands = map[string]command{
	"create":   runCreate,
	"show":     runShow,
	"status":   runStatus,
	"donate":   runDonate,
	"withdraw": runWithdraw,
	"watch":    runWatch,
}

// globalOptions 所有子命令共用的参数
type globalOptions struct {
	server   string
	timeout  time.Duration
	logLevel string
}

func (g *globalOptions) bind(fs *pflag.FlagSet) {
	fs.StringVar(&g.server, "server", envOr("CLEANFUND_SERVER", "http://localhost:8080"), "cleanfund server base URL")
	fs.DurationVar(&g.timeout, "timeout", 30*time.Second, "HTTP timeout for server calls")
	fs.StringVar(&g.logLevel, "log-level", "warn", "log level")
}

// parse 解析参数并按 --log-level 初始化日志，日志输出到 stderr
func (g *globalOptions) parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return err
	}
	return logger.Init(config.LogConfig{Level: g.logLevel, Output: "stderr"})
}

func (g *globalOptions) client() *apiClient {
	return newAPIClient(g.server, g.timeout)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	name := os.Args[1]
	if name == "-h" || name == "--help" || name == "help" {
		fmt.Fprint(os.Stdout, usage)
		return
	}
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := &globalOptions{}
	err := cmd(ctx, g, os.Args[2:])
	logger.Sync()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "cfctl %s: %v\n", name, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
