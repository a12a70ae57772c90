package reorg

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/pow"
	"github.com/average-gary/testnet4-reorg-calculator/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// DefaultHashesPerDifficulty is the expected number of hashes to find a
	// block at difficulty 1.
	DefaultHashesPerDifficulty = 4294967296.0 // 2^32

	secondsPerHour = 3600.0
	secondsPerDay  = 86400.0
)

// Calculator turns a fork height into a ReorgCalculation.
type Calculator struct {
	source              BlockMetadataSource
	accumulator         *Accumulator
	logger              *slog.Logger
	network             string
	hashesPerDifficulty float64
	nowFn               func() time.Time
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithHashesPerDifficulty overrides the 2^32 hashes-per-difficulty constant.
// Non-positive or non-finite values are ignored.
func WithHashesPerDifficulty(hpd float64) Option {
	return func(c *Calculator) {
		if hpd > 0 && !math.IsInf(hpd, 0) && !math.IsNaN(hpd) {
			c.hashesPerDifficulty = hpd
		}
	}
}

// WithProgress forwards chain work progress to fn every interval heights.
func WithProgress(fn ProgressFunc, interval uint64) Option {
	return func(c *Calculator) {
		c.accumulator.WithProgress(fn, interval)
	}
}

// WithClock sets the clock used for the record timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) {
		if now != nil {
			c.nowFn = now
		}
	}
}

// WithNetwork sets the network label used in metrics.
func WithNetwork(network string) Option {
	return func(c *Calculator) {
		if network != "" {
			c.network = network
			c.accumulator.WithNetwork(network)
		}
	}
}

func NewCalculator(source BlockMetadataSource, logger *slog.Logger, opts ...Option) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Calculator{
		source:              source,
		accumulator:         NewAccumulator(source, logger),
		logger:              logger.With("component", "reorg_calculator"),
		network:             model.NetworkTestnet4.String(),
		hashesPerDifficulty: DefaultHashesPerDifficulty,
		nowFn:               time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HashesPerDifficulty returns the constant in effect.
func (c *Calculator) HashesPerDifficulty() float64 {
	return c.hashesPerDifficulty
}

// Evaluate computes how much work a competing branch forking at forkHeight
// must produce, and how long that takes at hashrate (H/s). targetDays sets
// the window used for HashrateRequired.
func (c *Calculator) Evaluate(ctx context.Context, forkHeight uint64, hashrate, targetDays float64) (calc model.ReorgCalculation, err error) {
	start := time.Now()
	ctx, span := tracing.Tracer("reorg").Start(ctx, "reorg.Evaluate",
		trace.WithAttributes(
			attribute.Int64("fork_height", int64(forkHeight)),
			attribute.Float64("hashrate", hashrate),
			attribute.Float64("target_days", targetDays),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.EvaluationsTotal.WithLabelValues(c.network, ErrorKind(err)).Inc()
		metrics.EvaluationLatency.WithLabelValues(c.network).Observe(time.Since(start).Seconds())
	}()

	if !positiveFinite(hashrate) {
		return model.ReorgCalculation{}, fmt.Errorf("%w: hashrate must be positive, got %v", ErrInvalidParameter, hashrate)
	}
	if !positiveFinite(targetDays) {
		return model.ReorgCalculation{}, fmt.Errorf("%w: target days must be positive, got %v", ErrInvalidParameter, targetDays)
	}

	currentHeight, err := c.source.CurrentHeight(ctx)
	if err != nil {
		return model.ReorgCalculation{}, Unavailable(err, "current height")
	}
	if forkHeight > currentHeight {
		return model.ReorgCalculation{}, fmt.Errorf("%w: fork height %d above current height %d",
			ErrInvalidForkHeight, forkHeight, currentHeight)
	}

	currentDifficulty, err := c.source.CurrentDifficulty(ctx)
	if err != nil {
		return model.ReorgCalculation{}, Unavailable(err, "current difficulty")
	}
	if !pow.Valid(currentDifficulty) {
		return model.ReorgCalculation{}, fmt.Errorf("%w: current difficulty %v", ErrDataUnavailable, currentDifficulty)
	}

	c.logger.Info("evaluating reorg",
		"fork_height", forkHeight,
		"current_height", currentHeight,
		"blocks", currentHeight-forkHeight+1,
	)

	totalWork, err := c.accumulator.AccumulateWork(ctx, forkHeight, currentHeight)
	if err != nil {
		return model.ReorgCalculation{}, fmt.Errorf("accumulate work from %d: %w", forkHeight, err)
	}

	current := currentDifficulty.Float64()
	blocksNeeded := math.Ceil(totalWork.Float64() / current)
	timePerBlock := current * c.hashesPerDifficulty / hashrate
	totalSeconds := blocksNeeded * timePerBlock
	hashrateRequired := blocksNeeded * current * c.hashesPerDifficulty / (targetDays * secondsPerDay)

	calc = model.ReorgCalculation{
		ForkHeight:        forkHeight,
		CurrentHeight:     currentHeight,
		BlocksToReorg:     currentHeight - forkHeight + 1,
		TotalWork:         totalWork,
		CurrentDifficulty: currentDifficulty,
		BlocksNeeded:      blocksNeeded,
		TimeRequiredHours: totalSeconds / secondsPerHour,
		TimeRequiredDays:  totalSeconds / secondsPerDay,
		HashrateRequired:  hashrateRequired,
		TargetDays:        targetDays,
		Timestamp:         c.nowFn().UTC(),
	}

	span.SetAttributes(
		attribute.Float64("total_work", calc.TotalWork.Float64()),
		attribute.Float64("blocks_needed", calc.BlocksNeeded),
		attribute.Float64("time_required_days", calc.TimeRequiredDays),
	)
	c.logger.Debug("reorg evaluated",
		"fork_height", forkHeight,
		"total_work", calc.TotalWork.Float64(),
		"blocks_needed", calc.BlocksNeeded,
		"time_required_days", calc.TimeRequiredDays,
	)

	return calc, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
