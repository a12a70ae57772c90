// Package store defines persistence for block metadata that outlives a run.
package store

import (
	"context"
	"errors"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

// ErrNotFound is returned when a height has not been persisted.
var ErrNotFound = errors.New("not found")

// StoredHeader is the part of a buried block header kept between runs.
// Hash identifies which block the bits belong to, so a reorg below the
// store depth can be detected on read.
type StoredHeader struct {
	Hash string
	Bits model.CompactTarget
}

// HeaderRepository persists headers of buried blocks by height.
type HeaderRepository interface {
	GetHeader(ctx context.Context, height uint64) (StoredHeader, error)
	PutHeader(ctx context.Context, height uint64, header StoredHeader) error
	Close() error
}
