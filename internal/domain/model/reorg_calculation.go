package model

import "time"

// ReorgCalculation is the outcome of one reorg feasibility evaluation.
// It is built once by the calculator and treated as immutable afterwards.
type ReorgCalculation struct {
	ForkHeight        uint64
	CurrentHeight     uint64
	BlocksToReorg     uint64
	TotalWork         Difficulty
	CurrentDifficulty Difficulty
	BlocksNeeded      float64
	TimeRequiredHours float64
	TimeRequiredDays  float64
	// HashrateRequired is the hashes/second needed to finish within TargetDays.
	HashrateRequired float64
	TargetDays       float64
	Timestamp        time.Time
}

// SingleBlockSuffices reports whether one block at the current difficulty
// already carries at least the work of the replaced range.
func (c ReorgCalculation) SingleBlockSuffices() bool {
	return c.BlocksNeeded <= 1
}
