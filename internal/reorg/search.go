package reorg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCandidateDepths are the distances below the tip tried by a search.
var DefaultCandidateDepths = []uint64{1, 10, 50, 100, 500, 1000, 5000}

const (
	outcomeViable  = "viable"
	outcomeTooSlow = "too_slow"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Searcher probes fork heights at fixed depths below the tip.
type Searcher struct {
	calc    *Calculator
	logger  *slog.Logger
	depths  []uint64
	network string
}

// NewSearcher builds a Searcher. With no depths, DefaultCandidateDepths is used.
func NewSearcher(calc *Calculator, logger *slog.Logger, depths ...uint64) *Searcher {
	if logger == nil {
		logger = slog.Default()
	}
	if len(depths) == 0 {
		depths = DefaultCandidateDepths
	}
	return &Searcher{
		calc:    calc,
		logger:  logger.With("component", "viable_fork_search"),
		depths:  append([]uint64(nil), depths...),
		network: calc.network,
	}
}

// Depths returns a copy of the configured candidate depths.
func (s *Searcher) Depths() []uint64 {
	return append([]uint64(nil), s.depths...)
}

// CandidateHeights maps the configured depths onto heights below current,
// dropping depths that would reach genesis or beyond.
func (s *Searcher) CandidateHeights(current uint64) []uint64 {
	heights := make([]uint64, 0, len(s.depths))
	for _, depth := range s.depths {
		if depth >= current {
			continue
		}
		heights = append(heights, current-depth)
	}
	return heights
}

// FindViable evaluates every candidate height in order and returns the
// evaluations that finish within maxDays at hashrate. Candidates that fail
// to evaluate are logged and skipped.
func (s *Searcher) FindViable(ctx context.Context, hashrate, maxDays float64) (viable []model.ReorgCalculation, err error) {
	if math.IsNaN(maxDays) || math.IsInf(maxDays, 0) || maxDays < 0 {
		return nil, fmt.Errorf("%w: max days must be non-negative, got %v", ErrInvalidParameter, maxDays)
	}
	if !positiveFinite(hashrate) {
		return nil, fmt.Errorf("%w: hashrate must be positive, got %v", ErrInvalidParameter, hashrate)
	}

	ctx, span := tracing.Tracer("reorg").Start(ctx, "reorg.FindViable",
		trace.WithAttributes(
			attribute.Float64("hashrate", hashrate),
			attribute.Float64("max_days", maxDays),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	current, err := s.calc.source.CurrentHeight(ctx)
	if err != nil {
		return nil, Unavailable(err, "current height")
	}

	targetDays := maxDays
	if targetDays == 0 {
		targetDays = 1
	}

	for _, depth := range s.depths {
		if depth >= current {
			metrics.SearchCandidatesTotal.WithLabelValues(s.network, outcomeSkipped).Inc()
		}
	}

	heights := s.CandidateHeights(current)
	s.logger.Info("searching viable fork heights",
		"current_height", current,
		"candidates", len(heights),
		"max_days", maxDays,
	)

	viable = make([]model.ReorgCalculation, 0, len(heights))
	for _, height := range heights {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		calc, err := s.calc.Evaluate(ctx, height, hashrate, targetDays)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			metrics.SearchCandidatesTotal.WithLabelValues(s.network, outcomeFailed).Inc()
			s.logger.Warn("candidate evaluation failed",
				"fork_height", height,
				"kind", ErrorKind(err),
				"error", err,
			)
			continue
		}

		if calc.TimeRequiredDays <= maxDays {
			metrics.SearchCandidatesTotal.WithLabelValues(s.network, outcomeViable).Inc()
			viable = append(viable, calc)
			continue
		}
		metrics.SearchCandidatesTotal.WithLabelValues(s.network, outcomeTooSlow).Inc()
	}

	span.SetAttributes(attribute.Int("viable", len(viable)))
	return viable, nil
}

// FindViableHeights is FindViable reduced to fork heights.
func (s *Searcher) FindViableHeights(ctx context.Context, hashrate, maxDays float64) ([]uint64, error) {
	calcs, err := s.FindViable(ctx, hashrate, maxDays)
	if err != nil {
		return nil, err
	}
	heights := make([]uint64, 0, len(calcs))
	for _, c := range calcs {
		heights = append(heights, c.ForkHeight)
	}
	return heights, nil
}
