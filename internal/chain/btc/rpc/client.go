package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/average-gary/testnet4-reorg-calculator/internal/chain/ratelimit"
	"github.com/average-gary/testnet4-reorg-calculator/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// RPCClient is the slice of the Bitcoin Core RPC surface the calculator uses.
type RPCClient interface {
	GetBlockCount(ctx context.Context) (int64, error)
	GetBlockHash(ctx context.Context, height int64) (string, error)
	GetBlockHeader(ctx context.Context, hash string) (*BlockHeader, error)
	GetDifficulty(ctx context.Context) (float64, error)
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
}

type Client struct {
	httpClient *http.Client
	rpcURL     string
	user       string
	password   string
	network    string
	requestID  atomic.Int64
	logger     *slog.Logger
	limiter    *ratelimit.Limiter
}

func NewClient(rpcURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		rpcURL:  rpcURL,
		network: "testnet4",
		logger:  logger.With("component", "btc_rpc"),
	}
}

// SetRateLimiter sets the RPC rate limiter for this client.
func (c *Client) SetRateLimiter(l *ratelimit.Limiter) {
	c.limiter = l
}

// SetBasicAuth sets the rpcuser/rpcpassword pair sent with every request.
func (c *Client) SetBasicAuth(user, password string) {
	c.user = user
	c.password = password
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *Client) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// SetNetwork sets the network label attached to RPC metrics.
func (c *Client) SetNetwork(network string) {
	if network != "" {
		c.network = network
	}
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.rpcURL
}

func (c *Client) call(ctx context.Context, method string, params []interface{}) (result json.RawMessage, err error) {
	start := time.Now()
	defer func() {
		metrics.RPCLatency.WithLabelValues(c.network, method).Observe(time.Since(start).Seconds())
		ratelimit.RecordRPCCall(c.network, method, err)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req := c.newRequest(method, params)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	respBody, status, err := c.post(ctx, body)
	if err != nil {
		return nil, err
	}

	var rpcResp Response
	if status != http.StatusOK {
		// Pre-2.0 bitcoind replies to failed calls with HTTP 404/500 and a
		// JSON error body; surface the RPC error when one is present.
		if jsonErr := json.Unmarshal(respBody, &rpcResp); jsonErr == nil && rpcResp.Error != nil {
			return nil, rpcResp.Error
		}
		return nil, fmt.Errorf("http status %d: %s", status, string(respBody))
	}

	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}

	c.logger.Debug("rpc call", "method", method, "duration", time.Since(start))
	return rpcResp.Result, nil
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.user != "" || c.password != "" {
		httpReq.SetBasicAuth(c.user, c.password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) newRequest(method string, params []interface{}) Request {
	id := int(c.requestID.Add(1))
	if params == nil {
		params = []interface{}{}
	}
	return Request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	}
}
