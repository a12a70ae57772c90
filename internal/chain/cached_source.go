package chain

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/average-gary/testnet4-reorg-calculator/internal/cache"
	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
	"github.com/average-gary/testnet4-reorg-calculator/internal/reorg"
	"github.com/average-gary/testnet4-reorg-calculator/internal/store"
)

// DefaultStoreMinDepth keeps blocks this close to the tip out of the store.
const DefaultStoreMinDepth uint64 = 100

const (
	tierMemory = "memory"
	tierDisk   = "disk"
)

// CachedSource serves compact targets from memory, then from a header store,
// then from the wrapped source. Height and difficulty always come from the
// wrapped source. Store entries are checked against the node's current hash
// for their height, so a reorg below the store depth is never served stale.
type CachedSource struct {
	inner    reorg.BlockMetadataSource
	headers  HeaderSource
	memory   *cache.LRU[uint64, model.CompactTarget]
	disk     store.HeaderRepository
	minDepth uint64
	tip      atomic.Uint64
	logger   *slog.Logger
}

type CachedSourceOption func(*CachedSource)

// WithMemoryCache keeps up to size targets in process. ttl 0 means no expiry.
func WithMemoryCache(size int, ttl time.Duration) CachedSourceOption {
	return func(s *CachedSource) {
		if size > 0 {
			s.memory = cache.NewLRU[uint64, model.CompactTarget](size, ttl)
		}
	}
}

// WithHeaderStore persists targets of blocks at least minDepth below the tip.
// It has no effect unless the wrapped source implements HeaderSource.
func WithHeaderStore(repo store.HeaderRepository, minDepth uint64) CachedSourceOption {
	return func(s *CachedSource) {
		s.disk = repo
		s.minDepth = minDepth
	}
}

func NewCachedSource(inner reorg.BlockMetadataSource, logger *slog.Logger, opts ...CachedSourceOption) *CachedSource {
	if logger == nil {
		logger = slog.Default()
	}
	s := &CachedSource{
		inner:    inner,
		minDepth: DefaultStoreMinDepth,
		logger:   logger.With("component", "cached_source"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.disk != nil {
		hs, ok := inner.(HeaderSource)
		if !ok {
			s.logger.Warn("header store disabled: source cannot report block hashes")
			s.disk = nil
		}
		s.headers = hs
	}
	return s
}

func (s *CachedSource) CurrentHeight(ctx context.Context) (uint64, error) {
	height, err := s.inner.CurrentHeight(ctx)
	if err != nil {
		return 0, err
	}
	s.tip.Store(height)
	return height, nil
}

func (s *CachedSource) CurrentDifficulty(ctx context.Context) (model.Difficulty, error) {
	return s.inner.CurrentDifficulty(ctx)
}

func (s *CachedSource) CompactTargetAt(ctx context.Context, height uint64) (model.CompactTarget, error) {
	if s.memory != nil {
		if bits, ok := s.memory.Get(height); ok {
			metrics.HeaderCacheLookups.WithLabelValues(tierMemory, "hit").Inc()
			return bits, nil
		}
		metrics.HeaderCacheLookups.WithLabelValues(tierMemory, "miss").Inc()
	}

	if s.disk != nil {
		return s.fromStore(ctx, height)
	}

	bits, err := s.inner.CompactTargetAt(ctx, height)
	if err != nil {
		return 0, err
	}
	s.remember(height, bits)
	return bits, nil
}

func (s *CachedSource) fromStore(ctx context.Context, height uint64) (model.CompactTarget, error) {
	stored, err := s.disk.GetHeader(ctx, height)
	switch {
	case err == nil:
		hash, err := s.headers.BlockHashAt(ctx, height)
		if err != nil {
			return 0, err
		}
		if hash == stored.Hash {
			metrics.HeaderCacheLookups.WithLabelValues(tierDisk, "hit").Inc()
			s.remember(height, stored.Bits)
			return stored.Bits, nil
		}
		metrics.HeaderCacheLookups.WithLabelValues(tierDisk, "stale").Inc()
		s.logger.Info("stored header replaced by reorg", "height", height, "stored_hash", stored.Hash, "hash", hash)
	case errors.Is(err, store.ErrNotFound):
		metrics.HeaderCacheLookups.WithLabelValues(tierDisk, "miss").Inc()
	default:
		metrics.HeaderCacheLookups.WithLabelValues(tierDisk, "error").Inc()
		s.logger.Warn("header store read failed", "height", height, "error", err)
	}

	hash, bits, err := s.headers.HeaderAt(ctx, height)
	if err != nil {
		return 0, err
	}
	s.remember(height, bits)
	s.persist(ctx, height, store.StoredHeader{Hash: hash, Bits: bits})
	return bits, nil
}

// Describe forwards to the wrapped source when it can name its chain.
func (s *CachedSource) Describe(ctx context.Context) string {
	return describe(ctx, s.inner, model.NetworkTestnet4.String())
}

// Buried reports whether height is deep enough below the last seen tip to
// be written to the header store.
func (s *CachedSource) Buried(height uint64) bool {
	tip := s.tip.Load()
	return tip >= s.minDepth && height <= tip-s.minDepth
}

func (s *CachedSource) remember(height uint64, bits model.CompactTarget) {
	if s.memory != nil {
		s.memory.Put(height, bits)
	}
}

func (s *CachedSource) persist(ctx context.Context, height uint64, header store.StoredHeader) {
	if !s.Buried(height) {
		return
	}
	if err := s.disk.PutHeader(ctx, height, header); err != nil {
		s.logger.Warn("header store write failed", "height", height, "error", err)
	}
}
