package model

import (
	"fmt"
	"strconv"
	"strings"
)

// CompactTarget is the 32-bit "nBits" encoding of a proof-of-work threshold:
// an 8-bit base-256 exponent followed by a 24-bit mantissa.
type CompactTarget uint32

// Exponent returns the high byte of the encoding.
func (c CompactTarget) Exponent() uint8 {
	return uint8((uint32(c) >> 24) & 0xff)
}

// Mantissa returns the low 24 bits of the encoding.
func (c CompactTarget) Mantissa() uint32 {
	return uint32(c) & 0xffffff
}

// String renders the encoding the way bitcoind reports it in block headers.
func (c CompactTarget) String() string {
	return fmt.Sprintf("%08x", uint32(c))
}

// ParseCompactTarget parses the hex "bits" field of a block header.
func ParseCompactTarget(s string) (CompactTarget, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return 0, fmt.Errorf("parse compact target: empty value")
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parse compact target %q: %w", s, err)
	}
	return CompactTarget(v), nil
}

// Difficulty is work relative to the network's maximum-target baseline.
type Difficulty float64

func (d Difficulty) Float64() float64 {
	return float64(d)
}
