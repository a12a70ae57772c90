package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/average-gary/testnet4-reorg-calculator/internal/reorg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode answers the handful of bitcoind methods the calculator uses.
type fakeNode struct {
	tip      int64
	bits     string
	user     string
	password string
	calls    atomic.Int64
}

func (n *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.calls.Add(1)
	if n.user != "" {
		u, p, ok := r.BasicAuth()
		if !ok || u != n.user || p != n.password {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var req struct {
		ID     int               `json:"id"`
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var result any
	switch req.Method {
	case "getblockcount":
		result = n.tip
	case "getdifficulty":
		result = 2.0
	case "getblockchaininfo":
		result = map[string]any{"chain": "testnet4", "blocks": n.tip}
	case "getblockhash":
		var h int64
		_ = json.Unmarshal(req.Params[0], &h)
		result = fmt.Sprintf("%064x", h)
	case "getblockheader":
		var hash string
		_ = json.Unmarshal(req.Params[0], &hash)
		h, _ := strconv.ParseInt(hash, 16, 64)
		result = map[string]any{"hash": hash, "height": h, "bits": n.bits, "difficulty": 2.0}
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     req.ID,
			"result": nil,
			"error":  map[string]any{"code": -32601, "message": "Method not found"},
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"id": req.ID, "result": result, "error": nil})
}

var envKeys = []string{
	"CONFIG_FILE", "RPC_URL", "RPC_USER", "RPC_PASSWORD", "RPC_PORT", "NETWORK",
	"DEFAULT_HASHRATE", "TARGET_DAYS", "SEARCH_CANDIDATE_DEPTHS", "DEFAULT_FORK_DEPTH",
	"OUTPUT_FILE", "HEADER_CACHE_SIZE", "HEADER_STORE_DIR", "METRICS_ADDR",
	"TRACING_ENABLED", "ALERT_SLACK_WEBHOOK_URL", "ALERT_WEBHOOK_URL", "LOG_LEVEL", "LOG_FORMAT",
}

// tenMinuteHashrate mines one difficulty-2 block every 600 seconds.
var tenMinuteHashrate = strconv.FormatFloat(2*reorg.DefaultHashesPerDifficulty/600, 'g', -1, 64)

func setup(t *testing.T, node *fakeNode) (string, string) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)
	return srv.URL, filepath.Join(t.TempDir(), "results.txt")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRun_SingleForkHeight(t *testing.T) {
	node := &fakeNode{tip: 1000, bits: "1c7fff80", user: "alice", password: "secret"}
	url, output := setup(t, node)

	out, err := execute(t,
		"--rpc-url", url,
		"--rpcuser", "alice",
		"--rpcpassword", "secret",
		"--fork-height", "990",
		"--hashrate", tenMinuteHashrate,
		"--output", output,
	)
	require.NoError(t, err)

	assert.Contains(t, out, "Current block height: 1000")
	assert.Contains(t, out, "Chain: testnet4")
	assert.Contains(t, out, "Fork Height: 990")
	assert.Contains(t, out, "Blocks to Reorg: 11")
	assert.Contains(t, out, "Total Existing Chain Work: 22.00")
	assert.Contains(t, out, "New Chain Blocks Needed: 11")
	assert.Contains(t, out, "Time Required: 1.83 hours (0.08 days)")
	assert.Contains(t, out, "=== For Target Time (3 days) ===")
	assert.Contains(t, out, "Results saved to: "+output)
	assert.NotContains(t, out, "--batch-calculate")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Fork Height: 990\n")
	assert.Contains(t, string(data), "Blocks Needed: 11\n")
	assert.Equal(t, 1, strings.Count(string(data), "---"))
}

func TestRun_FlagOverridesInvalidEnv(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})
	t.Setenv("DEFAULT_HASHRATE", "0")

	_, err := execute(t, "--rpc-url", url, "--fork-height", "990", "--output", output)
	require.Error(t, err)
	assert.ErrorContains(t, err, "hashrate")

	out, err := execute(t, "--rpc-url", url, "--fork-height", "990", "--hashrate", tenMinuteHashrate, "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Time Required: 1.83 hours (0.08 days)")
}

func TestRun_DefaultSuggestion(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})

	out, err := execute(t, "--rpc-url", url, "--output", output, "-t", "5")
	require.NoError(t, err)

	assert.Contains(t, out, "Calculating for suggested height: 900")
	assert.Contains(t, out, "Blocks to Reorg: 101")
	assert.Contains(t, out, "=== For Target Time (5 days) ===")
	assert.Contains(t, out, "use: --fork-height <height>")
	assert.Contains(t, out, "use: --batch-calculate")
}

func TestRun_BatchCalculate(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})

	out, err := execute(t,
		"--rpc-url", url,
		"--batch-calculate",
		"--hashrate", tenMinuteHashrate,
		"--target-days", "3",
		"--output", output,
	)
	require.NoError(t, err)

	// 432 blocks fit in three days; depth 500 needs 501.
	assert.Contains(t, out, "Found 4 viable target heights:")
	for _, h := range []string{"999", "990", "950", "900"} {
		assert.Contains(t, out, "Fork Height: "+h+"\n")
	}
	assert.NotContains(t, out, "Fork Height: 500\n")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, 4, strings.Count(string(data), "---"))
}

func TestRun_BatchNothingViable(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})

	out, err := execute(t, "--rpc-url", url, "--batch-calculate", "--hashrate", "1", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "No viable target heights found within 3 days with 1 H/s")
}

func TestRun_ForkAboveTip(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})

	_, err := execute(t, "--rpc-url", url, "--fork-height", "1001", "--output", output)
	require.Error(t, err)
	assert.ErrorIs(t, err, reorg.ErrInvalidForkHeight)

	_, statErr := os.Stat(output)
	assert.True(t, os.IsNotExist(statErr), "failed runs must not write results")
}

func TestRun_BadCredentials(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80", user: "alice", password: "secret"})

	_, err := execute(t, "--rpc-url", url, "--rpcuser", "alice", "--rpcpassword", "wrong", "--output", output)
	require.Error(t, err)
	assert.ErrorIs(t, err, reorg.ErrDataUnavailable)
}

func TestRun_RejectsInvalidFlags(t *testing.T) {
	url, output := setup(t, &fakeNode{tip: 1000, bits: "1c7fff80"})

	_, err := execute(t, "--rpc-url", url, "--hashrate", "0", "--output", output)
	assert.ErrorContains(t, err, "hashrate")

	_, err = execute(t, "--rpc-url", url, "--fork-height", "5", "--batch-calculate", "--output", output)
	assert.Error(t, err)

	_, err = execute(t, "--rpc-url", url, "extra")
	assert.Error(t, err)
}

func TestRun_HeaderCacheAndStore(t *testing.T) {
	node := &fakeNode{tip: 1000, bits: "1c7fff80"}
	url, output := setup(t, node)
	t.Setenv("HEADER_CACHE_SIZE", "2048")
	t.Setenv("HEADER_STORE_DIR", t.TempDir())

	_, err := execute(t, "--rpc-url", url, "--fork-height", "800", "--output", output)
	require.NoError(t, err)
	first := node.calls.Load()

	_, err = execute(t, "--rpc-url", url, "--fork-height", "800", "--output", output)
	require.NoError(t, err)
	second := node.calls.Load() - first

	// Heights 800..900 are buried and come from the store on the second run.
	assert.Less(t, second, first)
}

func TestMetricsMux(t *testing.T) {
	srv := httptest.NewServer(newMetricsMux(slog.Default()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
