package btc

import (
	"context"
	"errors"

	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/btc/rpc"
)

// FaultClass says whether a failed call tells us anything about node health.
type FaultClass string

const (
	// FaultNode means the node is unreachable, overloaded or not ready.
	FaultNode FaultClass = "node"
	// FaultRequest means the node answered and rejected the request.
	FaultRequest FaultClass = "request"
	// FaultCaller means the caller gave up before the node answered.
	FaultCaller FaultClass = "caller"
)

// Classify maps a call error to a FaultClass. Only FaultNode counts
// against the circuit breaker.
func Classify(ctx context.Context, err error) FaultClass {
	if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return FaultCaller
	}

	var rpcErr *rpc.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPCCode(rpcErr.Code)
	}
	// transport failures, timeouts, non-JSON replies
	return FaultNode
}

func classifyRPCCode(code int) FaultClass {
	switch {
	case code == rpc.ErrCodeInWarmup:
		return FaultNode
	case code == -32603: // internal error
		return FaultNode
	default:
		return FaultRequest
	}
}
