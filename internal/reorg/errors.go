package reorg

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidForkHeight is returned when the fork height is above the tip.
	ErrInvalidForkHeight = errors.New("invalid fork height")
	// ErrDataUnavailable is returned when block metadata cannot be read.
	ErrDataUnavailable = errors.New("block data unavailable")
	// ErrInvalidParameter is returned for non-positive or non-finite inputs.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Unavailable wraps err in ErrDataUnavailable unless it already is one.
func Unavailable(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, ErrDataUnavailable) {
		return fmt.Errorf("%s: %w", msg, err)
	}
	return fmt.Errorf("%s: %w: %w", msg, ErrDataUnavailable, err)
}

// ErrorKind maps an error to a short label for metrics and warnings.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, ErrInvalidForkHeight):
		return "invalid_fork_height"
	case errors.Is(err, ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, ErrDataUnavailable):
		return "data_unavailable"
	default:
		return "error"
	}
}
