package rpc

import (
	"encoding/json"

	"github.com/average-gary/testnet4-reorg-calculator/internal/domain/model"
)

type Request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error,omitempty"`
}

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return e.Message
}

// Bitcoin Core error codes the source distinguishes.
const (
	ErrCodeInvalidParameter = -8 // e.g. "Block height out of range"
	ErrCodeBlockNotFound    = -5
	ErrCodeInWarmup         = -28
	ErrCodeMethodNotFound   = -32601
)

// BlockHeader is the verbose getblockheader result.
type BlockHeader struct {
	Hash              string  `json:"hash"`
	Confirmations     int64   `json:"confirmations"`
	Height            int64   `json:"height"`
	Version           int32   `json:"version"`
	MerkleRoot        string  `json:"merkleroot"`
	Time              int64   `json:"time"`
	MedianTime        int64   `json:"mediantime"`
	Nonce             uint32  `json:"nonce"`
	Bits              string  `json:"bits"`
	Difficulty        float64 `json:"difficulty"`
	ChainWork         string  `json:"chainwork"`
	PreviousBlockHash string  `json:"previousblockhash"`
}

// CompactTarget parses the header's hex-encoded bits field.
func (h *BlockHeader) CompactTarget() (model.CompactTarget, error) {
	return model.ParseCompactTarget(h.Bits)
}

// BlockchainInfo is the subset of getblockchaininfo the calculator reports.
type BlockchainInfo struct {
	Chain                string  `json:"chain"`
	Blocks               int64   `json:"blocks"`
	Headers              int64   `json:"headers"`
	BestBlockHash        string  `json:"bestblockhash"`
	Difficulty           float64 `json:"difficulty"`
	ChainWork            string  `json:"chainwork"`
	InitialBlockDownload bool    `json:"initialblockdownload"`
	VerificationProgress float64 `json:"verificationprogress"`
}
