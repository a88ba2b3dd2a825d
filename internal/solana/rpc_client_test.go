package solana

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHTTPClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}

		if req.Method != "getBalance" {
			t.Errorf("expected method getBalance, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": 123},
				"value":   uint64(2500000000),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balance, err := client.GetBalance(context.Background(), "wallet1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if balance != 2500000000 {
		t.Errorf("expected 2500000000 lamports, got %d", balance)
	}
}

func TestHTTPClient_GetTokenBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getTokenAccountsByOwner" {
			t.Errorf("expected method getTokenAccountsByOwner, got %s", req.Method)
		}

		account := func(amount string) map[string]interface{} {
			return map[string]interface{}{
				"account": map[string]interface{}{
					"data": map[string]interface{}{
						"parsed": map[string]interface{}{
							"info": map[string]interface{}{
								"tokenAmount": map[string]interface{}{
									"amount":   amount,
									"decimals": 6,
								},
							},
						},
					},
				},
			}
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{account("1000000"), account("250000")},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balance, err := client.GetTokenBalance(context.Background(), "owner1", USDCMint)
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}

	if balance.Amount != 1250000 {
		t.Errorf("expected summed amount 1250000, got %d", balance.Amount)
	}
	if balance.Decimals != 6 {
		t.Errorf("expected 6 decimals, got %d", balance.Decimals)
	}
}

func TestHTTPClient_GetTokenBalance_NoAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  map[string]interface{}{"value": []interface{}{}},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	balance, err := client.GetTokenBalance(context.Background(), "owner1", USDCMint)
	if err != nil {
		t.Fatalf("GetTokenBalance: %v", err)
	}

	if balance.Amount != 0 {
		t.Errorf("expected zero balance, got %d", balance.Amount)
	}
}

func TestHTTPClient_SendTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "sendTransaction" {
			t.Errorf("expected method sendTransaction, got %s", req.Method)
		}
		if len(req.Params) < 2 {
			t.Fatalf("expected 2 params, got %d", len(req.Params))
		}
		cfg, ok := req.Params[1].(map[string]interface{})
		if !ok || cfg["encoding"] != "base64" {
			t.Errorf("expected base64 encoding config, got %v", req.Params[1])
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  "5igDhd...sig",
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	sig, err := client.SendTransaction(context.Background(), "dGVzdHR4")
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}

	if sig != "5igDhd...sig" {
		t.Errorf("unexpected signature %s", sig)
	}
}

func TestHTTPClient_SendTransaction_RPCError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"error": map[string]interface{}{
				"code":    -32002,
				"message": "Transaction simulation failed: Blockhash not found",
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, WithMaxRetries(3))

	_, err := client.SendTransaction(context.Background(), "dGVzdHR4")
	if err == nil {
		t.Fatal("expected error for rejected transaction")
	}

	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected *RPCError, got %T: %v", err, err)
	}
	if rpcErr.Code != -32002 {
		t.Errorf("expected code -32002, got %d", rpcErr.Code)
	}

	// RPC errors must not be retried
	if n := calls.Load(); n != 1 {
		t.Errorf("expected 1 call, got %d", n)
	}
}

func TestHTTPClient_GetSignatureStatuses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if req.Method != "getSignatureStatuses" {
			t.Errorf("expected method getSignatureStatuses, got %s", req.Method)
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": []interface{}{
					map[string]interface{}{
						"slot":               int64(48),
						"confirmations":      nil,
						"confirmationStatus": "finalized",
						"err":                nil,
					},
					nil,
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL)

	statuses, err := client.GetSignatureStatuses(context.Background(), []string{"sig1", "sig2"})
	if err != nil {
		t.Fatalf("GetSignatureStatuses: %v", err)
	}

	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Confirmed() {
		t.Error("expected first signature confirmed")
	}
	if statuses[1] != nil {
		t.Errorf("expected nil status for unknown signature, got %+v", statuses[1])
	}
}

func TestHTTPClient_RetryOn429(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)

		if n < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}

		resp := map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result": map[string]interface{}{
				"value": uint64(42),
			},
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(5),
		WithRetryDelay(10*time.Millisecond),
		WithMaxDelay(50*time.Millisecond),
	)

	balance, err := client.GetBalance(context.Background(), "wallet1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}

	if balance != 42 {
		t.Errorf("expected 42, got %d", balance)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("expected 3 calls, got %d", n)
	}
}

func TestHTTPClient_MaxRetriesExceeded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL,
		WithMaxRetries(2),
		WithRetryDelay(5*time.Millisecond),
	)

	_, err := client.GetBalance(context.Background(), "wallet1")
	if err == nil {
		t.Fatal("expected error after retries exhausted")
	}
}

func TestSignatureStatus_Confirmed(t *testing.T) {
	var nilStatus *SignatureStatus
	if nilStatus.Confirmed() {
		t.Error("nil status must not report confirmed")
	}

	failed := &SignatureStatus{ConfirmationStatus: "confirmed", Err: map[string]interface{}{"InstructionError": []interface{}{}}}
	if failed.Confirmed() {
		t.Error("errored status must not report confirmed")
	}
	if !failed.Failed() {
		t.Error("errored status must report failed")
	}

	processed := &SignatureStatus{ConfirmationStatus: "processed"}
	if processed.Confirmed() {
		t.Error("processed commitment is below confirmed")
	}
}
