// Package chain holds source decorators shared by node backends.
package chain

import (
	"context"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
	"github.com/average-gary/testnet4-reorg-calculator/internal/reorg"
)

// NodeSource is a metadata source that can also name the chain it serves.
type NodeSource interface {
	reorg.BlockMetadataSource

	// Describe returns the chain name reported by the node.
	Describe(ctx context.Context) string
}

// HeaderSource identifies the active-chain block at a height. Sources that
// implement it can back a persistent header store.
type HeaderSource interface {
	HeaderAt(ctx context.Context, height uint64) (hash string, bits model.CompactTarget, err error)
	BlockHashAt(ctx context.Context, height uint64) (string, error)
}

// describe returns the chain name from src when it can provide one.
func describe(ctx context.Context, src reorg.BlockMetadataSource, fallback string) string {
	if d, ok := src.(NodeSource); ok {
		return d.Describe(ctx)
	}
	return fallback
}
