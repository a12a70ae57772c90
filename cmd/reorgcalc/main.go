package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/average-gary/testnet4-reorg-calculator/internal/config"
)

// cliFlags holds command line overrides. A flag only wins over the
// configuration when it was set explicitly.
type cliFlags struct {
	forkHeight  uint64
	targetDays  float64
	hashrate    float64
	rpcUser     string
	rpcPassword string
	rpcPort     int
	rpcURL      string
	batch       bool
	output      string
	configFile  string
}

func newRootCmd() *cobra.Command {
	flags := &cliFlags{}

	cmd := &cobra.Command{
		Use:   "reorgcalc",
		Short: "Estimate the work needed to reorganize a Testnet4 chain",
		Long: `Estimate the accumulated work, time and hashrate required to replace the
blocks from a fork height up to the current tip of a Testnet4 node.

Configuration is read from defaults, an optional TOML file, a .env file and
the environment. Flags override all of them.`,
		Example: `  # Evaluate a specific fork height
  reorgcalc --fork-height 50000 --hashrate 2e15

  # Find every fork height reachable within 3 days
  reorgcalc --batch-calculate --target-days 3

  # Evaluate the default suggestion (100 blocks below the tip)
  reorgcalc --rpcuser user --rpcpassword pass`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile, config.DefaultDotenvFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := applyFlags(cmd, flags, cfg); err != nil {
				return err
			}

			mode := modeDefault
			switch {
			case flags.batch:
				mode = modeBatch
			case cmd.Flags().Changed("fork-height"):
				mode = modeSingle
			}
			return run(cmd.Context(), cfg, runOptions{
				mode:       mode,
				forkHeight: flags.forkHeight,
				stdout:     cmd.OutOrStdout(),
				stderr:     cmd.ErrOrStderr(),
			})
		},
	}

	f := cmd.Flags()
	f.Uint64VarP(&flags.forkHeight, "fork-height", "f", 0, "Fork height to evaluate")
	f.Float64VarP(&flags.targetDays, "target-days", "t", config.DefaultTargetDays, "Target time window in days")
	f.Float64Var(&flags.hashrate, "hashrate", config.DefaultHashrate, "Available hashrate in H/s")
	f.StringVar(&flags.rpcUser, "rpcuser", "", "Node RPC username")
	f.StringVar(&flags.rpcPassword, "rpcpassword", "", "Node RPC password")
	f.IntVar(&flags.rpcPort, "rpcport", 0, "Node RPC port (replaces the port of the RPC URL)")
	f.StringVar(&flags.rpcURL, "rpc-url", "", "Node RPC URL")
	f.BoolVar(&flags.batch, "batch-calculate", false, "Search fixed depths below the tip for viable fork heights")
	f.StringVar(&flags.output, "output", "", "File results are appended to")
	f.StringVar(&flags.configFile, "config", "", "Optional TOML config file")

	cmd.MarkFlagsMutuallyExclusive("fork-height", "batch-calculate")
	return cmd
}

func applyFlags(cmd *cobra.Command, flags *cliFlags, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("target-days") {
		cfg.Calc.TargetDays = flags.targetDays
	}
	if changed("hashrate") {
		cfg.Calc.Hashrate = flags.hashrate
	}
	if changed("rpcuser") {
		cfg.RPC.User = flags.rpcUser
	}
	if changed("rpcpassword") {
		cfg.RPC.Password = flags.rpcPassword
	}
	if changed("rpc-url") {
		cfg.RPC.URL = flags.rpcURL
	}
	if changed("rpcport") {
		cfg.RPC.Port = flags.rpcPort
	}
	if changed("output") {
		cfg.Output.File = flags.output
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
