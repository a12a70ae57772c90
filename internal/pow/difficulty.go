// Package pow converts compact proof-of-work targets into difficulty values.
package pow

import (
	"math"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

// MaxTargetBits is the compact encoding of the difficulty-1 target shared by
// mainnet and the public test networks.
const MaxTargetBits model.CompactTarget = 0x1d00ffff

// TargetValue expands a compact target to mantissa * 256^(exponent-3).
// Exponents below 3 yield fractional values rather than integer shifts.
func TargetValue(bits model.CompactTarget) float64 {
	mantissa := float64(bits.Mantissa())
	exponent := int(bits.Exponent()) - 3
	return mantissa * math.Pow(256, float64(exponent))
}

// DifficultyFromCompactTarget returns max_target / target(bits).
// A zero mantissa yields +Inf; use Valid before summing the result.
func DifficultyFromCompactTarget(bits model.CompactTarget) model.Difficulty {
	return model.Difficulty(TargetValue(MaxTargetBits) / TargetValue(bits))
}

// Valid reports whether d is finite and strictly positive.
func Valid(d model.Difficulty) bool {
	f := float64(d)
	return f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f)
}
