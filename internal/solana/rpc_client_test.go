package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newRPCServer answers every request with result produced by fn.
func newRPCServer(t *testing.T, wantMethod string, fn func(req rpcRequest) interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		if req.Method != wantMethod {
			t.Errorf("expected method %s, got %s", wantMethod, req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  fn(req),
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestHTTPClient_GetAccountInfo(t *testing.T) {
	hookProgram := testProgram
	mintData := EncodeMint(&MintLayout{
		Supply:              1_000_000_000_000,
		Decimals:            9,
		IsInitialized:       true,
		TransferHookProgram: &hookProgram,
	})

	server := newRPCServer(t, "getAccountInfo", func(req rpcRequest) interface{} {
		require.Len(t, req.Params, 2)
		assert.Equal(t, testMint.String(), req.Params[0])
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports":   uint64(1461600),
				"owner":      Token2022ProgramID.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(mintData), "base64"},
				"executable": false,
				"rentEpoch":  uint64(100),
			},
		}
	})

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), testMint)
	require.NoError(t, err)
	require.NotNil(t, info)

	assert.Equal(t, uint64(1461600), info.Lamports)
	assert.Equal(t, Token2022ProgramID, info.Owner)
	assert.Equal(t, mintData, info.Data)

	mint, err := DecodeMint(info.Data)
	require.NoError(t, err)
	require.NotNil(t, mint.TransferHookProgram)
	assert.Equal(t, testProgram, *mint.TransferHookProgram)
}

func TestHTTPClient_GetAccountInfo_NotFound(t *testing.T) {
	server := newRPCServer(t, "getAccountInfo", func(rpcRequest) interface{} {
		return map[string]interface{}{"value": nil}
	})

	client := NewHTTPClient(server.URL)
	info, err := client.GetAccountInfo(context.Background(), testWallet)
	if err != nil {
		t.Fatalf("GetAccountInfo: %v", err)
	}
	if info != nil {
		t.Errorf("expected nil for not found, got %+v", info)
	}
}

func TestHTTPClient_GetAccountInfo_BadOwner(t *testing.T) {
	server := newRPCServer(t, "getAccountInfo", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"lamports": uint64(1),
				"owner":    "not-a-key",
				"data":     []string{"", "base64"},
			},
		}
	})

	client := NewHTTPClient(server.URL)
	_, err := client.GetAccountInfo(context.Background(), testWallet)
	assert.Error(t, err)
}

func TestHTTPClient_GetMultipleAccounts(t *testing.T) {
	server := newRPCServer(t, "getMultipleAccounts", func(req rpcRequest) interface{} {
		keys, ok := req.Params[0].([]interface{})
		require.True(t, ok)
		assert.Len(t, keys, 2)
		return map[string]interface{}{
			"value": []interface{}{
				map[string]interface{}{
					"lamports": uint64(5),
					"owner":    SystemProgramID.String(),
					"data":     []string{"AQID", "base64"},
				},
				nil,
			},
		}
	})

	client := NewHTTPClient(server.URL)
	infos, err := client.GetMultipleAccounts(context.Background(), []PublicKey{testMint, testWallet})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.NotNil(t, infos[0])
	assert.Equal(t, []byte{1, 2, 3}, infos[0].Data)
	assert.Nil(t, infos[1])

	none, err := client.GetMultipleAccounts(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestHTTPClient_GetMinimumBalanceForRentExemption(t *testing.T) {
	server := newRPCServer(t, "getMinimumBalanceForRentExemption", func(req rpcRequest) interface{} {
		assert.Equal(t, float64(82), req.Params[0])
		return uint64(1461600)
	})

	client := NewHTTPClient(server.URL)
	lamports, err := client.GetMinimumBalanceForRentExemption(context.Background(), MintSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(1461600), lamports)
}

func TestHTTPClient_GetTokenAccountBalance(t *testing.T) {
	server := newRPCServer(t, "getTokenAccountBalance", func(rpcRequest) interface{} {
		return map[string]interface{}{
			"value": map[string]interface{}{
				"amount":         "99990000000",
				"decimals":       9,
				"uiAmountString": "99.99",
			},
		}
	})

	client := NewHTTPClient(server.URL)
	bal, err := client.GetTokenAccountBalance(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, uint64(99_990_000_000), bal.Amount)
	assert.Equal(t, uint8(9), bal.Decimals)
	assert.Equal(t, "99.99", bal.UIAmount)
}

func TestHTTPClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  int64(999),
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	var observed atomic.Int32
	client := NewHTTPClient(server.URL,
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
		WithLatencyObserver(func(method string, _ float64) {
			assert.Equal(t, "getSlot", method)
			observed.Add(1)
		}),
	)

	slot, err := client.GetSlot(context.Background())
	if err != nil {
		t.Fatalf("GetSlot: %v", err)
	}

	if slot != 999 {
		t.Errorf("expected slot 999, got %d", slot)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
	// One observation per logical call, not per attempt.
	assert.Equal(t, int32(1), observed.Load())
}

func TestHTTPClient_RPCError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32600,
				"message": "Invalid Request",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	_, err := client.GetSlot(context.Background())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T", err)
	}
	if rpcErr.Code != -32600 {
		t.Errorf("expected code -32600, got %d", rpcErr.Code)
	}
}

func TestHTTPClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // Cancel immediately

	_, err := client.GetSlot(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
