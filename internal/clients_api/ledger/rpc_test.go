package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"holders-snapshot/internal/infra/apperr"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage   `json:"id"`
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

type rpcErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcErrorBody   `json:"error,omitempty"`
}

// callData extracts the eth_call input whichever field name the client used.
func callData(t *testing.T, req rpcRequest) []byte {
	t.Helper()
	require.Equal(t, "eth_call", req.Method)
	require.NotEmpty(t, req.Params)

	var fields struct {
		Input hexutil.Bytes `json:"input"`
		Data  hexutil.Bytes `json:"data"`
	}
	require.NoError(t, json.Unmarshal(req.Params[0], &fields))
	if len(fields.Input) > 0 {
		return fields.Input
	}
	return fields.Data
}

func newNode(t *testing.T, handle func(w http.ResponseWriter, req rpcRequest)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		handle(w, req)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeResult(w http.ResponseWriter, req rpcRequest, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func writeError(w http.ResponseWriter, req rpcRequest, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(rpcResponse{JSONRPC: "2.0", ID: req.ID, Error: &rpcErrorBody{Code: code, Message: message}})
}

func TestDial_TotalSupplyOverHTTP(t *testing.T) {
	parsed := mustABI(t)
	srv := newNode(t, func(w http.ResponseWriter, req rpcRequest) {
		data := callData(t, req)
		assert.Equal(t, parsed.Methods[methodTotalSupply].ID, data[:4])
		packed, err := parsed.Methods[methodTotalSupply].Outputs.Pack(big.NewInt(7))
		require.NoError(t, err)
		writeResult(w, req, hexutil.Bytes(packed))
	})

	c, err := Dial(context.Background(), srv.URL, mustContract(t))
	require.NoError(t, err)
	defer c.Close()

	supply, err := c.TotalSupply(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), supply)
}

func TestDial_HTTPErrorIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, mustContract(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.TotalSupply(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperr.KindTransport, apperr.KindOf(err))
}

func TestDial_RetriesServiceUnavailable(t *testing.T) {
	parsed := mustABI(t)
	owner := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	var hits atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			http.Error(w, "slow down", http.StatusServiceUnavailable)
			return
		}
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		packed, err := parsed.Methods[methodOwnerOf].Outputs.Pack(owner)
		require.NoError(t, err)
		writeResult(w, req, hexutil.Bytes(packed))
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, mustContract(t),
		WithRetry(2), WithRetryDelays(time.Millisecond, 2*time.Millisecond))
	require.NoError(t, err)
	defer c.Close()

	got, err := c.OwnerOf(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, owner, got)
	assert.Equal(t, int32(2), hits.Load())
}

func TestDial_NoRetryByDefault(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), srv.URL, mustContract(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.TotalSupply(context.Background())
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDial_RevertIsExecution(t *testing.T) {
	parsed := mustABI(t)
	srv := newNode(t, func(w http.ResponseWriter, req rpcRequest) {
		data := callData(t, req)
		args, err := parsed.Methods[methodOwnerOf].Inputs.Unpack(data[4:])
		require.NoError(t, err)
		assert.Equal(t, uint64(9), args[0].(*big.Int).Uint64())
		writeError(w, req, 3, "execution reverted: ERC721: invalid token ID")
	})

	c, err := Dial(context.Background(), srv.URL, mustContract(t))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.OwnerOf(context.Background(), 9)
	require.Error(t, err)
	assert.Equal(t, apperr.KindExecution, apperr.KindOf(err))
}

func TestDial_BadURL(t *testing.T) {
	_, err := Dial(context.Background(), "unix-not-a-scheme://x", mustContract(t))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindTransport))
}
