// Package btc reads block metadata from a Bitcoin Core compatible node.
package btc

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/btc/rpc"
	"github.com/average-gary/testnet4-reorg-calculator/internal/circuitbreaker"
	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/reorg"
)

// FallbackChainName is reported when the node cannot describe itself.
const FallbackChainName = "testnet4 (detected)"

// Source implements reorg.BlockMetadataSource over JSON-RPC.
type Source struct {
	client  rpc.RPCClient
	breaker *circuitbreaker.Breaker
	logger  *slog.Logger
	network string
}

type SourceOption func(*Source)

// WithBreakerConfig replaces the default circuit breaker settings.
func WithBreakerConfig(cfg circuitbreaker.Config) SourceOption {
	return func(s *Source) {
		s.breaker = s.newBreaker(cfg)
	}
}

// WithNetwork sets the network label used in logs and metrics.
func WithNetwork(network string) SourceOption {
	return func(s *Source) {
		if network != "" {
			s.network = network
		}
	}
}

func NewSource(client rpc.RPCClient, logger *slog.Logger, opts ...SourceOption) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Source{
		client:  client,
		logger:  logger.With("component", "btc_source"),
		network: model.NetworkTestnet4.String(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.breaker == nil {
		s.breaker = s.newBreaker(circuitbreaker.Config{})
	}
	metrics.CircuitBreakerState.WithLabelValues(s.network).Set(float64(circuitbreaker.StateClosed))
	return s
}

func (s *Source) newBreaker(cfg circuitbreaker.Config) *circuitbreaker.Breaker {
	user := cfg.OnStateChange
	cfg.OnStateChange = func(from, to circuitbreaker.State) {
		s.logger.Warn("node circuit breaker state changed", "from", from.String(), "to", to.String())
		metrics.CircuitBreakerState.WithLabelValues(s.network).Set(float64(to))
		if user != nil {
			user(from, to)
		}
	}
	return circuitbreaker.New(cfg)
}

// BreakerState reports the node circuit breaker state.
func (s *Source) BreakerState() circuitbreaker.State {
	return s.breaker.GetState()
}

func (s *Source) CurrentHeight(ctx context.Context) (uint64, error) {
	var count int64
	err := s.do(ctx, func() error {
		var err error
		count, err = s.client.GetBlockCount(ctx)
		return err
	})
	if err != nil {
		return 0, reorg.Unavailable(err, "block count")
	}
	if count < 0 {
		return 0, fmt.Errorf("%w: negative block count %d", reorg.ErrDataUnavailable, count)
	}
	return uint64(count), nil
}

func (s *Source) CurrentDifficulty(ctx context.Context) (model.Difficulty, error) {
	var difficulty float64
	err := s.do(ctx, func() error {
		var err error
		difficulty, err = s.client.GetDifficulty(ctx)
		return err
	})
	if err != nil {
		return 0, reorg.Unavailable(err, "difficulty")
	}
	return model.Difficulty(difficulty), nil
}

func (s *Source) CompactTargetAt(ctx context.Context, height uint64) (model.CompactTarget, error) {
	_, bits, err := s.HeaderAt(ctx, height)
	return bits, err
}

// HeaderAt returns the hash and compact target of the active-chain block at
// height.
func (s *Source) HeaderAt(ctx context.Context, height uint64) (string, model.CompactTarget, error) {
	if height > math.MaxInt64 {
		return "", 0, fmt.Errorf("%w: height %d out of range", reorg.ErrDataUnavailable, height)
	}

	var header *rpc.BlockHeader
	var hash string
	err := s.do(ctx, func() error {
		var err error
		hash, err = s.client.GetBlockHash(ctx, int64(height))
		if err != nil {
			return err
		}
		header, err = s.client.GetBlockHeader(ctx, hash)
		return err
	})
	if err != nil {
		return "", 0, reorg.Unavailable(err, "block header at height %d", height)
	}
	if header == nil {
		return "", 0, fmt.Errorf("%w: block header at height %d not found", reorg.ErrDataUnavailable, height)
	}

	bits, err := header.CompactTarget()
	if err != nil {
		return "", 0, reorg.Unavailable(err, "block header at height %d", height)
	}
	return hash, bits, nil
}

// BlockHashAt returns the hash of the active-chain block at height.
func (s *Source) BlockHashAt(ctx context.Context, height uint64) (string, error) {
	if height > math.MaxInt64 {
		return "", fmt.Errorf("%w: height %d out of range", reorg.ErrDataUnavailable, height)
	}

	var hash string
	err := s.do(ctx, func() error {
		var err error
		hash, err = s.client.GetBlockHash(ctx, int64(height))
		return err
	})
	if err != nil {
		return "", reorg.Unavailable(err, "block hash at height %d", height)
	}
	return hash, nil
}

// Describe returns the chain name the node reports, or FallbackChainName.
func (s *Source) Describe(ctx context.Context) string {
	var info *rpc.BlockchainInfo
	err := s.do(ctx, func() error {
		var err error
		info, err = s.client.GetBlockchainInfo(ctx)
		return err
	})
	if err != nil || info == nil || info.Chain == "" {
		if err != nil {
			s.logger.Debug("getblockchaininfo failed", "error", err)
		}
		return FallbackChainName
	}
	return info.Chain
}

func (s *Source) do(ctx context.Context, fn func() error) error {
	return s.breaker.Do(fn, func(err error) bool {
		return Classify(ctx, err) != FaultNode
	})
}
