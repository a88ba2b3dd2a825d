package solana

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSClient_Connect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		// Keep connection open
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.closed.Load() {
		t.Error("client should not be closed")
	}
}

func TestWSClient_SubscribeSignature(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer c.Close()

		// Read subscribe request
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}

		var req wsRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}

		if req.Method != "signatureSubscribe" {
			t.Errorf("expected signatureSubscribe, got %s", req.Method)
		}
		if len(req.Params) != 2 {
			t.Errorf("expected 2 params, got %d", len(req.Params))
		} else {
			if sig, _ := req.Params[0].(string); sig != "testsig" {
				t.Errorf("expected signature testsig, got %v", req.Params[0])
			}
			opts, _ := req.Params[1].(map[string]interface{})
			if opts["commitment"] != "confirmed" {
				t.Errorf("expected commitment confirmed, got %v", opts["commitment"])
			}
		}

		// Send subscription confirmation
		resp := wsSubscribeResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  12345, // subscription ID
		}
		if err := c.WriteJSON(resp); err != nil {
			t.Errorf("write response: %v", err)
			return
		}

		// Send the confirmation notification
		time.Sleep(50 * time.Millisecond)
		notif := wsNotification{
			JSONRPC: "2.0",
			Method:  "signatureNotification",
			Params: &wsNotificationParams{
				Subscription: 12345,
				Result: wsNotificationResult{
					Context: &wsContext{Slot: 100},
					Value:   wsSignatureValue{Err: nil},
				},
			},
		}
		if err := c.WriteJSON(notif); err != nil {
			t.Errorf("write notification: %v", err)
			return
		}

		// Keep connection open
		for {
			_, _, err := c.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	ch, err := client.SubscribeSignature(ctx, "testsig")
	if err != nil {
		t.Fatalf("SubscribeSignature: %v", err)
	}

	// Wait for notification
	select {
	case notif := <-ch:
		if notif.Signature != "testsig" {
			t.Errorf("expected testsig, got %s", notif.Signature)
		}
		if notif.Slot != 100 {
			t.Errorf("expected slot 100, got %d", notif.Slot)
		}
		if notif.Err != nil {
			t.Errorf("expected nil err, got %v", notif.Err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for notification")
	}

	// One-shot: the channel is closed after delivery.
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel after delivery")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for channel close")
	}
}

func TestWSClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	err = client.Close()
	if err != nil {
		t.Errorf("Close: %v", err)
	}

	if !client.closed.Load() {
		t.Error("client should be closed")
	}

	// Double close should be safe
	err = client.Close()
	if err != nil {
		t.Errorf("double Close: %v", err)
	}
}

func TestWSClient_SubscribeAfterClose(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Fatalf("upgrade: %v", err)
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}

	client.Close()

	_, err = client.SubscribeSignature(ctx, "testsig")
	if err == nil {
		t.Error("expected error subscribing after close")
	}
}

func TestWSClient_CustomConfig(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	config := &WSClientConfig{
		ReconnectDelay:    100 * time.Millisecond,
		MaxReconnectDelay: 1 * time.Second,
		PingInterval:      5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
	}

	ctx := context.Background()
	client, err := NewWSClient(ctx, wsURL, config)
	if err != nil {
		t.Fatalf("NewWSClient: %v", err)
	}
	defer client.Close()

	if client.config.PingInterval != 5*time.Second {
		t.Errorf("expected PingInterval 5s, got %v", client.config.PingInterval)
	}
}
