package reorg

import (
	"context"
	"errors"
	"sync"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

const (
	bitsDifficulty1   model.CompactTarget = 0x1d00ffff
	bitsDifficulty2   model.CompactTarget = 0x1c7fff80
	bitsDifficulty256 model.CompactTarget = 0x1c00ffff
)

var errNodeDown = errors.New("node down")

// fakeSource is an in-memory BlockMetadataSource.
type fakeSource struct {
	mu          sync.Mutex
	height      uint64
	difficulty  model.Difficulty
	defaultBits model.CompactTarget
	bits        map[uint64]model.CompactTarget
	failAt      map[uint64]error
	heightErr   error
	diffErr     error

	heightCalls int
	targetCalls int
}

func newFakeSource(height uint64, difficulty model.Difficulty, bits model.CompactTarget) *fakeSource {
	return &fakeSource{
		height:      height,
		difficulty:  difficulty,
		defaultBits: bits,
		bits:        make(map[uint64]model.CompactTarget),
		failAt:      make(map[uint64]error),
	}
}

func (f *fakeSource) CurrentHeight(_ context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heightCalls++
	if f.heightErr != nil {
		return 0, f.heightErr
	}
	return f.height, nil
}

func (f *fakeSource) CurrentDifficulty(_ context.Context) (model.Difficulty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.diffErr != nil {
		return 0, f.diffErr
	}
	return f.difficulty, nil
}

func (f *fakeSource) CompactTargetAt(_ context.Context, height uint64) (model.CompactTarget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.targetCalls++
	if err, ok := f.failAt[height]; ok {
		return 0, err
	}
	if height > f.height {
		return 0, errors.New("block height out of range")
	}
	if b, ok := f.bits[height]; ok {
		return b, nil
	}
	return f.defaultBits, nil
}
