package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/average-gary/testnet4-reorg-calculator/internal/alert"
	"github.com/average-gary/testnet4-reorg-calculator/internal/chain"
	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/btc"
	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/btc/rpc"
	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/ratelimit"
	"github.com/average-gary/testnet4-reorg-calculator/internal/circuitbreaker"
	"github.com/average-gary/testnet4-reorg-calculator/internal/config"
	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/reorg"
	"github.com/average-gary/testnet4-reorg-calculator/internal/report"
	badgerstore "github.com/average-gary/testnet4-reorg-calculator/internal/store/badger"
	"github.com/average-gary/testnet4-reorg-calculator/internal/tracing"
)

const serviceName = "testnet4-reorg-calculator"

type runMode int

const (
	modeDefault runMode = iota
	modeSingle
	modeBatch
)

type runOptions struct {
	mode       runMode
	forkHeight uint64
	stdout     io.Writer
	stderr     io.Writer
}

func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	logger := newLogger(cfg.Log, opts.stderr)
	network := model.Network(cfg.RPC.Network)

	tracingEndpoint := ""
	if cfg.Tracing.Enabled {
		tracingEndpoint = cfg.Tracing.Endpoint
	}
	shutdownTracing, err := tracing.Init(ctx, serviceName, tracingEndpoint, cfg.Tracing.Insecure, cfg.Tracing.SampleRatio)
	if err != nil {
		return fmt.Errorf("initialize tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	endpoint, err := cfg.RPC.Endpoint()
	if err != nil {
		return err
	}
	source, closeSource, err := buildSource(cfg, endpoint, network, logger)
	if err != nil {
		return err
	}
	defer closeSource()

	a := &app{
		cfg:     cfg,
		network: network,
		source:  source,
		logger:  logger,
		out:     opts.stdout,
		alerter: buildAlerter(cfg.Alert, logger),
		writer:  report.NewFileWriter(cfg.Output.File, network, logger),
		nowFn:   time.Now,
	}
	a.calc = reorg.NewCalculator(source, logger,
		reorg.WithHashesPerDifficulty(cfg.Calc.HashesPerDifficulty),
		reorg.WithNetwork(network.String()),
		reorg.WithProgress(a.logProgress, cfg.Calc.ProgressInterval),
	)
	a.searcher = reorg.NewSearcher(a.calc, logger, cfg.Calc.CandidateDepths...)

	if cfg.Server.MetricsAddr == "" {
		return a.run(ctx, endpoint, opts)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runMetricsServer(gCtx, cfg.Server.MetricsAddr, logger)
	})
	g.Go(func() error {
		defer cancel()
		return a.run(gCtx, endpoint, opts)
	})
	return g.Wait()
}

// buildSource wires the node client with its rate limiter, breaker and
// optional caches. The returned func releases the header store.
func buildSource(cfg *config.Config, endpoint string, network model.Network, logger *slog.Logger) (reorg.BlockMetadataSource, func(), error) {
	client := rpc.NewClient(endpoint, logger)
	client.SetBasicAuth(cfg.RPC.User, cfg.RPC.Password)
	client.SetTimeout(cfg.RPC.Timeout())
	client.SetNetwork(network.String())
	if cfg.RPC.RateLimitRPS > 0 {
		client.SetRateLimiter(ratelimit.NewLimiter(cfg.RPC.RateLimitRPS, cfg.RPC.RateLimitBurst, network.String()))
	}

	var source chain.NodeSource = btc.NewSource(client, logger,
		btc.WithNetwork(network.String()),
		btc.WithBreakerConfig(circuitbreaker.Config{
			FailureThreshold: cfg.Breaker.FailureThreshold,
			OpenTimeout:      cfg.Breaker.OpenTimeout(),
		}),
	)

	if cfg.Cache.Size <= 0 && cfg.Cache.StoreDir == "" {
		return source, func() {}, nil
	}

	var opts []chain.CachedSourceOption
	if cfg.Cache.Size > 0 {
		opts = append(opts, chain.WithMemoryCache(cfg.Cache.Size, cfg.Cache.TTL()))
	}
	closeFn := func() {}
	if cfg.Cache.StoreDir != "" {
		hs, err := badgerstore.Open(cfg.Cache.StoreDir, network, logger)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, chain.WithHeaderStore(hs, cfg.Cache.StoreMinDepth))
		closeFn = func() {
			if err := hs.Close(); err != nil {
				logger.Warn("header store close failed", "error", err)
			}
		}
	}
	return chain.NewCachedSource(source, logger, opts...), closeFn, nil
}

func buildAlerter(cfg config.AlertConfig, logger *slog.Logger) *alert.MultiAlerter {
	var alerters []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		alerters = append(alerters, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		alerters = append(alerters, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	return alert.NewMultiAlerter(cfg.Cooldown(), logger, alerters...)
}

type app struct {
	cfg      *config.Config
	network  model.Network
	source   reorg.BlockMetadataSource
	calc     *reorg.Calculator
	searcher *reorg.Searcher
	writer   *report.FileWriter
	alerter  *alert.MultiAlerter
	logger   *slog.Logger
	out      io.Writer
	nowFn    func() time.Time
}

func (a *app) run(ctx context.Context, endpoint string, opts runOptions) error {
	runID := uuid.New()
	runAt := a.nowFn()
	hashrate := a.cfg.Calc.Hashrate
	targetDays := a.cfg.Calc.TargetDays
	a.logger.Info("starting reorg calculation",
		"run_id", runID.String(),
		"rpc_url", endpoint,
		"network", a.network.String(),
		"hashrate", hashrate,
		"target_days", targetDays,
	)

	current, err := a.source.CurrentHeight(ctx)
	if err != nil {
		a.notify(ctx, runID, nil, err)
		return fmt.Errorf("read current height: %w", err)
	}
	a.printf("Connected to %s node at %s\n", a.network.DisplayName(), endpoint)
	a.printf("Current block height: %d\n", current)
	if d, ok := a.source.(chain.NodeSource); ok {
		a.printf("Chain: %s\n", d.Describe(ctx))
	}

	var calcs []model.ReorgCalculation
	switch opts.mode {
	case modeBatch:
		a.printf("\nFinding viable target heights for %s within %s days...\n",
			report.FormatHashrate(hashrate), report.FormatDays(targetDays))
		calcs, err = a.searcher.FindViable(ctx, hashrate, targetDays)
		if err != nil {
			a.notify(ctx, runID, nil, err)
			return fmt.Errorf("find viable heights: %w", err)
		}
		if len(calcs) == 0 {
			a.printf("No viable target heights found within %s days with %s\n",
				report.FormatDays(targetDays), report.FormatHashrate(hashrate))
		} else {
			a.printf("Found %d viable target heights:\n", len(calcs))
		}

	case modeSingle:
		calc, err := a.calc.Evaluate(ctx, opts.forkHeight, hashrate, targetDays)
		if err != nil {
			a.notify(ctx, runID, nil, err)
			return fmt.Errorf("evaluate fork height %d: %w", opts.forkHeight, err)
		}
		calcs = append(calcs, calc)

	default:
		suggested := uint64(0)
		if current > a.cfg.Calc.DefaultForkDepth {
			suggested = current - a.cfg.Calc.DefaultForkDepth
		}
		a.printf("\nNo fork height specified. Calculating for suggested height: %d\n", suggested)
		calc, err := a.calc.Evaluate(ctx, suggested, hashrate, targetDays)
		if err != nil {
			a.notify(ctx, runID, nil, err)
			return fmt.Errorf("evaluate fork height %d: %w", suggested, err)
		}
		calcs = append(calcs, calc)
	}

	for _, c := range calcs {
		if err := report.Display(a.out, a.network, c, hashrate); err != nil {
			return fmt.Errorf("display calculation: %w", err)
		}
	}

	if opts.mode == modeDefault {
		a.printf("\nTo calculate for a specific height, use: --fork-height <height>\n")
		a.printf("To find all viable heights, use: --batch-calculate\n")
	}

	if err := a.writer.Append(runID, runAt, calcs, hashrate); err != nil {
		return fmt.Errorf("save results: %w", err)
	}
	a.printf("Results saved to: %s\n", a.writer.Path())

	if opts.mode == modeBatch {
		a.notify(ctx, runID, calcs, nil)
	}
	return nil
}

func (a *app) notify(ctx context.Context, runID uuid.UUID, calcs []model.ReorgCalculation, runErr error) {
	if a.alerter == nil || a.alerter.Channels() == 0 {
		return
	}
	summary := alert.RunSummary(a.network, runID.String(), calcs, a.cfg.Calc.Hashrate, a.cfg.Calc.TargetDays, runErr)
	if err := a.alerter.Send(ctx, summary); err != nil {
		a.logger.Warn("run summary alert failed", "run_id", runID.String(), "error", err)
	}
}

func (a *app) logProgress(p reorg.Progress) {
	a.logger.Info("chain work progress",
		"height", p.Height,
		"processed", p.Processed,
		"total", p.Total,
		"percent", fmt.Sprintf("%.1f", p.Percent()),
		"difficulty", p.Difficulty.Float64(),
		"work", p.Work.Float64(),
	)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
