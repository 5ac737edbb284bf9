// =============================================================================
// agentguard 命令行入口
// =============================================================================
// 使用方法:
//
//	agentguard check --config agentguard.yaml < inputs.txt
//	agentguard check --actor alice --output "fixed reply"
//	agentguard validate --config agentguard.yaml
//	agentguard migrate up --config agentguard.yaml
//	agentguard version
// =============================================================================

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/BaSui01/agentguard/agent/safety"
	"github.com/BaSui01/agentguard/config"
	"github.com/BaSui01/agentguard/internal/logging"
	"github.com/BaSui01/agentguard/internal/migration"
	"github.com/BaSui01/agentguard/internal/server"
	"github.com/BaSui01/agentguard/internal/telemetry"
)

// =============================================================================
// 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "migrate":
		runMigrate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// check 命令
// =============================================================================

func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	actor := fs.String("actor", "cli", "Actor key used for admission")
	output := fs.String("output", "", "Fixed executor output (default: echo input)")
	metricsAddr := fs.String("metrics-addr", "", "Serve Prometheus metrics on this address")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	addr := *metricsAddr
	if addr == "" {
		addr = cfg.Metrics.Addr
	}
	if addr != "" {
		srvCfg := server.DefaultConfig()
		srvCfg.Addr = addr
		metricsServer := server.NewMetricsManager(reg, srvCfg, logger)
		if err := metricsServer.Start(); err != nil {
			logger.Error("failed to start metrics server", zap.Error(err))
			os.Exit(1)
		}
		defer metricsServer.Shutdown(context.Background())
	}

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("Starting agentguard check",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	bo := safety.BuildOptions{Logger: logger, Registerer: reg, Tracer: otelProviders.Tracer()}
	if err := check(ctx, cfg, bo, *actor, *output, os.Stdin, os.Stdout); err != nil {
		logger.Error("check failed", zap.Error(err))
		os.Exit(1)
	}
}

// checkLine 是每个输入行对应的 JSON 输出
type checkLine struct {
	Input  string         `json:"input"`
	Result *safety.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// check 逐行运行 in 中的输入并把结果写入 out
func check(ctx context.Context, cfg *config.Config, bo safety.BuildOptions, actor, output string, in io.Reader, out io.Writer) error {
	inner := safety.ExecutorFunc(func(_ context.Context, input string) (*safety.ExecResult, error) {
		if output != "" {
			return &safety.ExecResult{Success: true, Output: output}, nil
		}
		return &safety.ExecResult{Success: true, Output: input}, nil
	})

	exec, err := safety.NewFromConfig(ctx, cfg, inner, bo)
	if err != nil {
		return err
	}
	defer exec.Close()

	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := checkLine{Input: scanner.Text()}
		res, err := exec.Run(ctx, line.Input, actor)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line.Error = err.Error()
		}
		line.Result = res
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
	}
	return scanner.Err()
}

// =============================================================================
// validate 命令
// =============================================================================

func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	if _, err := loadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func loadConfig(path string) (*config.Config, error) {
	return config.NewLoader().
		WithConfigPath(path).
		WithValidator((*config.Config).Validate).
		Load()
}

// =============================================================================
// migrate 命令
// =============================================================================

func runMigrate(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: agentguard migrate <up|down|version|status> [--config <path>]")
		os.Exit(1)
	}
	command := args[0]

	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args[1:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc, err := migration.ConfigFromDatabase(cfg.Audit.Database)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid database config: %v\n", err)
		os.Exit(1)
	}
	m, err := migration.New(ctx, mc, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if err := migration.NewCLI(m, os.Stdout).Run(ctx, command); err != nil {
		fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("agentguard %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`agentguard - boundary enforcement for autonomous executors

Usage:
  agentguard <command> [options]

Commands:
  check     Run stdin lines through the configured guard
  validate  Load and validate a configuration file
  migrate   Manage the audit table schema (postgres, mysql)
  version   Show version information
  help      Show this help message

Options for 'check':
  --config <path>        Path to configuration file (YAML)
  --actor <key>          Actor key used for admission (default: cli)
  --output <text>        Fixed executor output instead of echo
  --metrics-addr <addr>  Serve Prometheus metrics, e.g. :9090

Migration subcommands:
  migrate up        Apply all pending migrations
  migrate down      Roll back the last migration
  migrate version   Show current migration version
  migrate status    Show migration status

Examples:
  agentguard check --config agentguard.yaml < prompts.txt
  agentguard migrate up --config agentguard.yaml
  agentguard validate --config agentguard.yaml
  agentguard version`)
}
