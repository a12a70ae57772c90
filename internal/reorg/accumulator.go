package reorg

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/pow"
	"github.com/average-gary/testnet4-reorg-calculator/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultProgressInterval is the block spacing between progress reports.
const DefaultProgressInterval uint64 = 1000

// Progress describes how far a chain work scan has got.
type Progress struct {
	From       uint64
	To         uint64
	Height     uint64
	Processed  uint64
	Total      uint64
	Difficulty model.Difficulty // of the block at Height
	Work       model.Difficulty // running sum including Height
}

// Percent returns completion in the range [0,100].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 100
	}
	return float64(p.Processed) / float64(p.Total) * 100
}

// ProgressFunc observes a scan. It must not block for long.
type ProgressFunc func(Progress)

// Accumulator sums per-block difficulty over height ranges.
type Accumulator struct {
	source   BlockMetadataSource
	logger   *slog.Logger
	network  string
	interval uint64
	progress ProgressFunc
}

func NewAccumulator(source BlockMetadataSource, logger *slog.Logger) *Accumulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accumulator{
		source:   source,
		logger:   logger.With("component", "chain_work_accumulator"),
		network:  model.NetworkTestnet4.String(),
		interval: DefaultProgressInterval,
	}
}

// WithProgress registers fn to be called every interval heights and at the
// last height of each range. A zero interval keeps the current one.
func (a *Accumulator) WithProgress(fn ProgressFunc, interval uint64) *Accumulator {
	a.progress = fn
	if interval > 0 {
		a.interval = interval
	}
	return a
}

// WithNetwork sets the network label attached to metrics.
func (a *Accumulator) WithNetwork(network string) *Accumulator {
	if network != "" {
		a.network = network
	}
	return a
}

// AccumulateWork returns the sum of block difficulties over [from, to],
// folded in ascending height order. Any unreadable or invalid block aborts
// the scan and no partial total is returned.
func (a *Accumulator) AccumulateWork(ctx context.Context, from, to uint64) (total model.Difficulty, err error) {
	if from > to {
		return 0, fmt.Errorf("%w: range start %d above end %d", ErrInvalidParameter, from, to)
	}

	ctx, span := tracing.Tracer("reorg").Start(ctx, "reorg.AccumulateWork",
		trace.WithAttributes(
			attribute.Int64("from_height", int64(from)),
			attribute.Int64("to_height", int64(to)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	a.logger.Debug("accumulating chain work", "from", from, "to", to)

	span64 := to - from
	var sum model.Difficulty
	var processed uint64
	for height := from; ; height++ {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("accumulate work at height %d: %w", height, err)
		}

		bits, err := a.source.CompactTargetAt(ctx, height)
		if err != nil {
			return 0, Unavailable(err, "compact target at height %d", height)
		}
		difficulty := pow.DifficultyFromCompactTarget(bits)
		if !pow.Valid(difficulty) {
			return 0, fmt.Errorf("%w: invalid compact target %s at height %d", ErrDataUnavailable, bits, height)
		}

		sum += difficulty
		processed++
		metrics.AccumulatorBlocksTotal.WithLabelValues(a.network).Inc()

		if a.progress != nil && (height%a.interval == 0 || height == to) {
			a.progress(Progress{
				From:       from,
				To:         to,
				Height:     height,
				Processed:  processed,
				Total:      span64 + 1,
				Difficulty: difficulty,
				Work:       sum,
			})
		}

		if height == to {
			break
		}
	}

	return sum, nil
}
