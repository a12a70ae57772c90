// Package reorg estimates the work, time and hashrate needed to replace a
// range of blocks ending at the chain tip with a heavier alternative.
package reorg

import (
	"context"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

// BlockMetadataSource supplies the chain data the calculator reads.
// Implementations wrap lookup failures in ErrDataUnavailable.
type BlockMetadataSource interface {
	CurrentHeight(ctx context.Context) (uint64, error)
	CurrentDifficulty(ctx context.Context) (model.Difficulty, error)
	CompactTargetAt(ctx context.Context, height uint64) (model.CompactTarget, error)
}
