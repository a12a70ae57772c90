package rpc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// newTestLogger returns a no-op logger suitable for tests.
func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rpcOK returns a properly formatted JSON-RPC 2.0 success response.
func rpcOK(result interface{}) []byte {
	raw, _ := json.Marshal(result)
	resp := Response{
		JSONRPC: "2.0",
		ID:      1,
		Result:  raw,
	}
	b, _ := json.Marshal(resp)
	return b
}

// rpcError returns a properly formatted JSON-RPC 2.0 error response.
func rpcError(code int, msg string) []byte {
	resp := struct {
		JSONRPC string    `json:"jsonrpc"`
		ID      int       `json:"id"`
		Error   *RPCError `json:"error"`
	}{
		JSONRPC: "2.0",
		ID:      1,
		Error:   &RPCError{Code: code, Message: msg},
	}
	b, _ := json.Marshal(resp)
	return b
}

// ---------------------------------------------------------------------------
// construction / setters
// ---------------------------------------------------------------------------

func TestNewClient_Construction(t *testing.T) {
	url := "http://127.0.0.1:48337"

	client := NewClient(url, newTestLogger())

	require.NotNil(t, client)
	assert.Equal(t, url, client.URL())
	assert.NotNil(t, client.httpClient)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, "testnet4", client.network)
	assert.Nil(t, client.limiter, "limiter should be nil by default")
	assert.Equal(t, int64(0), client.requestID.Load(), "requestID should start at 0")
}

func TestNewClient_NilLogger(t *testing.T) {
	client := NewClient("http://127.0.0.1:48337", nil)
	assert.NotNil(t, client.logger)
}

func TestClient_Setters(t *testing.T) {
	client := NewClient("http://127.0.0.1:48337", newTestLogger())

	client.SetTimeout(5 * time.Second)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout)
	client.SetTimeout(0)
	assert.Equal(t, 5*time.Second, client.httpClient.Timeout, "non-positive timeout is ignored")

	client.SetNetwork("signet")
	assert.Equal(t, "signet", client.network)
	client.SetNetwork("")
	assert.Equal(t, "signet", client.network)
}

// ---------------------------------------------------------------------------
// call
// ---------------------------------------------------------------------------

func TestClient_CallSuccess(t *testing.T) {
	var receivedReq Request

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_, _, hasAuth := r.BasicAuth()
		assert.False(t, hasAuth, "no credentials configured")

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &receivedReq))

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rpcOK(int64(72000)))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())

	result, err := client.call(context.Background(), "getblockcount", nil)
	require.NoError(t, err)

	assert.Equal(t, "2.0", receivedReq.JSONRPC)
	assert.Equal(t, "getblockcount", receivedReq.Method)
	assert.Equal(t, 1, receivedReq.ID)
	assert.NotNil(t, receivedReq.Params, "params are always sent as an array")

	var count int64
	require.NoError(t, json.Unmarshal(result, &count))
	assert.Equal(t, int64(72000), count)
}

func TestClient_CallSendsBasicAuth(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "myusername" || pass != "mypassword" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write(rpcOK(int64(1)))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())

	_, err := client.call(context.Background(), "getblockcount", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http status 401")

	client.SetBasicAuth("myusername", "mypassword")
	_, err = client.call(context.Background(), "getblockcount", nil)
	require.NoError(t, err)
}

func TestClient_CallRPCError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(rpcError(ErrCodeInvalidParameter, "Block height out of range"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())

	result, err := client.call(context.Background(), "getblockhash", []interface{}{int64(999999)})
	require.Error(t, err)
	assert.Nil(t, result)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInvalidParameter, rpcErr.Code)
	assert.Equal(t, "Block height out of range", rpcErr.Error())
}

func TestClient_CallLegacyErrorStatus(t *testing.T) {
	// bitcoind in JSON-RPC 1.0 mode reports RPC failures with HTTP 500.
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(rpcError(ErrCodeInWarmup, "Loading block index..."))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())

	_, err := client.call(context.Background(), "getblockcount", nil)
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, ErrCodeInWarmup, rpcErr.Code)
}

func TestClient_CallHTTPError(t *testing.T) {
	t.Run("non-200 status code", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("work queue depth exceeded"))
		}))
		defer ts.Close()

		client := NewClient(ts.URL, newTestLogger())

		result, err := client.call(context.Background(), "getblockcount", nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "http status 503")
		assert.Contains(t, err.Error(), "work queue depth exceeded")
	})

	t.Run("connection refused", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", newTestLogger())

		result, err := client.call(context.Background(), "getblockcount", nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "http request")
	})

	t.Run("context cancelled", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write(rpcOK(int64(100)))
		}))
		defer ts.Close()

		client := NewClient(ts.URL, newTestLogger())

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := client.call(ctx, "getblockcount", nil)
		require.Error(t, err)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_CallMalformedJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())

	_, err := client.call(context.Background(), "getblockcount", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal response")
}

func TestClient_RequestIDsIncrease(t *testing.T) {
	var ids []int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		ids = append(ids, req.ID)
		_, _ = w.Write(rpcOK(int64(1)))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, newTestLogger())
	for i := 0; i < 3; i++ {
		_, err := client.call(context.Background(), "getblockcount", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}
