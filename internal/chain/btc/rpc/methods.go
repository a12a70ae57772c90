package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

func (c *Client) GetBlockCount(ctx context.Context) (int64, error) {
	result, err := c.call(ctx, "getblockcount", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("getblockcount: %w", err)
	}

	var count int64
	if err := json.Unmarshal(result, &count); err != nil {
		return 0, fmt.Errorf("unmarshal block count: %w", err)
	}
	return count, nil
}

func (c *Client) GetBlockHash(ctx context.Context, height int64) (string, error) {
	result, err := c.call(ctx, "getblockhash", []interface{}{height})
	if err != nil {
		return "", fmt.Errorf("getblockhash(%d): %w", height, err)
	}

	var hash string
	if err := json.Unmarshal(result, &hash); err != nil {
		return "", fmt.Errorf("unmarshal block hash: %w", err)
	}
	return hash, nil
}

func (c *Client) GetBlockHeader(ctx context.Context, hash string) (*BlockHeader, error) {
	result, err := c.call(ctx, "getblockheader", []interface{}{hash, true})
	if err != nil {
		return nil, fmt.Errorf("getblockheader(%s): %w", hash, err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var header BlockHeader
	if err := json.Unmarshal(result, &header); err != nil {
		return nil, fmt.Errorf("unmarshal block header: %w", err)
	}
	return &header, nil
}

func (c *Client) GetDifficulty(ctx context.Context) (float64, error) {
	result, err := c.call(ctx, "getdifficulty", []interface{}{})
	if err != nil {
		return 0, fmt.Errorf("getdifficulty: %w", err)
	}

	var difficulty float64
	if err := json.Unmarshal(result, &difficulty); err != nil {
		return 0, fmt.Errorf("unmarshal difficulty: %w", err)
	}
	return difficulty, nil
}

func (c *Client) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	result, err := c.call(ctx, "getblockchaininfo", []interface{}{})
	if err != nil {
		return nil, fmt.Errorf("getblockchaininfo: %w", err)
	}
	if string(result) == "null" {
		return nil, nil
	}

	var info BlockchainInfo
	if err := json.Unmarshal(result, &info); err != nil {
		return nil, fmt.Errorf("unmarshal blockchain info: %w", err)
	}
	return &info, nil
}
