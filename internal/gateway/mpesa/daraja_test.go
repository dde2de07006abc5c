package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/seludoto/dolesecommerce/internal/config"
)

func TestPassword(t *testing.T) {
	got := Password("174379", "passkey", "20260825120000")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey20260825120000"))
	if got != want {
		t.Fatalf("Password() = %s, want %s", got, want)
	}
}

func TestSignAndVerify(t *testing.T) {
	body := []byte(`{"Body":{"stkCallback":{"ResultCode":0}}}`)
	sig := Sign("secret", body)

	if !VerifySignature("secret", body, sig) {
		t.Fatal("valid signature should verify")
	}
	if VerifySignature("secret", []byte("tampered"), sig) {
		t.Fatal("tampered body should not verify")
	}
	if VerifySignature("wrong", body, sig) {
		t.Fatal("wrong secret should not verify")
	}
	if VerifySignature("secret", body, "") {
		t.Fatal("empty signature should not verify")
	}
	if VerifySignature("", body, sig) {
		t.Fatal("empty secret should not verify")
	}
}

func TestSTKPush(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{
				"access_token": "token-123",
				"expires_in":   "3599",
			})
		case "/mpesa/stkpush/v1/processrequest":
			if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
				t.Errorf("unexpected auth header: %s", got)
			}
			var req STKPushRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Fatalf("decode request: %v", err)
			}
			if req.Amount != "35" {
				t.Errorf("expected amount 35, got %s", req.Amount)
			}
			if req.PhoneNumber != "254712345678" {
				t.Errorf("unexpected phone: %s", req.PhoneNumber)
			}
			json.NewEncoder(w).Encode(map[string]string{
				"MerchantRequestID":   "mr-1",
				"CheckoutRequestID":   "ws_CO_1",
				"ResponseCode":        "0",
				"ResponseDescription": "Success",
			})
		default:
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(&config.MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		BaseURL:        srv.URL,
		CallbackBase:   "https://shop.example.com",
	})

	resp, err := c.STKPush(context.Background(), "254712345678", 35, "DO20260825X", "Order DO20260825X")
	if err != nil {
		t.Fatalf("STKPush failed: %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_1" {
		t.Fatalf("unexpected checkout request id: %s", resp.CheckoutRequestID)
	}
	if gotPath != "/mpesa/stkpush/v1/processrequest" {
		t.Fatalf("unexpected last path: %s", gotPath)
	}
}

func TestSTKPushRejectsErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			json.NewEncoder(w).Encode(map[string]string{"access_token": "t", "expires_in": "3599"})
		default:
			json.NewEncoder(w).Encode(map[string]string{
				"ResponseCode":        "1",
				"ResponseDescription": "Insufficient funds",
			})
		}
	}))
	defer srv.Close()

	c := NewClient(&config.MpesaConfig{BaseURL: srv.URL})
	if _, err := c.STKPush(context.Background(), "254712345678", 10, "ref", "desc"); err == nil {
		t.Fatal("expected error for non-zero response code")
	}
}

func TestMetadataString(t *testing.T) {
	raw := []byte(`{"Body":{"stkCallback":{
		"CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"ok",
		"CallbackMetadata":{"Item":[
			{"Name":"Amount","Value":35},
			{"Name":"MpesaReceiptNumber","Value":"QGR7TY1KLM"},
			{"Name":"PhoneNumber","Value":254712345678}
		]}}}}`)

	var cb STKCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		t.Fatalf("unmarshal callback: %v", err)
	}
	if got := cb.MetadataString("MpesaReceiptNumber"); got != "QGR7TY1KLM" {
		t.Fatalf("unexpected receipt: %s", got)
	}
	if got := cb.MetadataString("PhoneNumber"); got != "254712345678" {
		t.Fatalf("unexpected phone: %s", got)
	}
	if got := cb.MetadataString("Missing"); got != "" {
		t.Fatalf("missing item should be empty, got %s", got)
	}
}
