package chain

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newClientWithResponse(t *testing.T, result interface{}) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JSONRPC string        `json:"jsonrpc"`
			Method  string        `json:"method"`
			Params  []interface{} `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.JSONRPC != "2.0" || req.Method != "getSignatureStatuses" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": result})
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{RPCURL: srv.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestVerifySignatureFinalized(t *testing.T) {
	client := newClientWithResponse(t, map[string]interface{}{
		"value": []map[string]interface{}{
			{"confirmationStatus": "finalized", "err": nil},
		},
	})

	ok, err := client.VerifySignature(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if !ok {
		t.Error("finalized signature not confirmed")
	}
}

func TestVerifySignatureUnknown(t *testing.T) {
	client := newClientWithResponse(t, map[string]interface{}{
		"value": []interface{}{nil},
	})

	ok, err := client.VerifySignature(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Error("unknown signature confirmed")
	}
}

func TestVerifySignatureFailedTransaction(t *testing.T) {
	client := newClientWithResponse(t, map[string]interface{}{
		"value": []map[string]interface{}{
			{"confirmationStatus": "finalized", "err": map[string]interface{}{"InstructionError": []interface{}{}}},
		},
	})

	ok, err := client.VerifySignature(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Error("failed transaction confirmed")
	}
}

func TestVerifySignatureProcessedNotConfirmed(t *testing.T) {
	client := newClientWithResponse(t, map[string]interface{}{
		"value": []map[string]interface{}{
			{"confirmationStatus": "processed", "err": nil},
		},
	})

	ok, err := client.VerifySignature(context.Background(), "sig-1")
	if err != nil {
		t.Fatalf("VerifySignature: %v", err)
	}
	if ok {
		t.Error("processed-only signature confirmed")
	}
}

func TestVerifySignatureEmpty(t *testing.T) {
	client, err := NewClient(Config{RPCURL: "http://localhost:0"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, err := client.VerifySignature(context.Background(), ""); err == nil {
		t.Fatal("empty signature accepted")
	}
}

func TestCallRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": map[string]interface{}{"code": -32602, "message": "invalid params"},
		})
	}))
	defer srv.Close()

	client, _ := NewClient(Config{RPCURL: srv.URL})
	if _, err := client.Call(context.Background(), "getSignatureStatuses", nil); err == nil {
		t.Fatal("rpc error not surfaced")
	}
}
