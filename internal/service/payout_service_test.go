package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/earnings"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
	"github.com/seludoto/dolesecommerce/internal/datamodels/store"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/repository/mysql"
)

const testB2CConversationID = "AG_20260825_00001"

// newB2CStub 本地 Daraja 桩，B2C 请求按 responseCode 受理或拒绝
func newB2CStub(t *testing.T, responseCode string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token", "expires_in": "3599",
		})
	})
	mux.HandleFunc("/mpesa/b2c/v1/paymentrequest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ConversationID":           testB2CConversationID,
			"OriginatorConversationID": "orig-1",
			"ResponseCode":             responseCode,
			"ResponseDescription":      "Accept the service request successfully.",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestPayoutService(t *testing.T, db *gorm.DB, darajaURL string) *PayoutService {
	t.Helper()
	cfg := &config.MpesaConfig{
		ConsumerKey: "ck", ConsumerSecret: "cs",
		ShortCode: "600000", InitiatorName: "apiuser", SecurityCred: "cred",
		BaseURL: darajaURL, CallbackBase: "http://localhost",
		WebhookSecret: testWebhookSecret,
	}
	return NewPayoutService(
		db,
		mysql.NewEarningsRepository(db),
		mysql.NewStoreRepository(db),
		mysql.NewPaymentRepository(db),
		mpesa.NewClient(cfg),
	)
}

// seedStoreWithBalance 建一家可提现店铺并充入可用余额
func seedStoreWithBalance(t *testing.T, db *gorm.DB, available int64) *store.Store {
	t.Helper()
	ctx := context.Background()
	st := &store.Store{
		OwnerID:     7,
		Name:        fmt.Sprintf("店铺-%s", t.Name()),
		Slug:        fmt.Sprintf("s-%s", t.Name()),
		Status:      store.StatusActive,
		PayoutPhone: "254712345678",
	}
	if err := mysql.NewStoreRepository(db).Create(ctx, st); err != nil {
		t.Fatalf("seed store: %v", err)
	}
	balances := mysql.NewEarningsRepository(db)
	b, err := balances.UpsertByStoreID(ctx, st.ID)
	if err != nil {
		t.Fatalf("upsert balance: %v", err)
	}
	b.Available = available
	if err := balances.Update(ctx, b); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	return st
}

func b2cResultBody(t *testing.T, conversationID string, resultCode int) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"Result": map[string]interface{}{
			"ResultType":               0,
			"ResultCode":               resultCode,
			"ResultDesc":               "desc",
			"OriginatorConversationID": "orig-1",
			"ConversationID":           conversationID,
			"TransactionID":            "TX-1",
		},
	})
	if err != nil {
		t.Fatalf("marshal b2c result: %v", err)
	}
	return raw
}

func TestRequestPayoutRejectsOverdraw(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, newB2CStub(t, "0").URL)
	ctx := context.Background()

	st := seedStoreWithBalance(t, db, 1000)
	if _, err := svc.RequestPayout(ctx, st.ID, 5000); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	b, _ := svc.GetBalance(ctx, st.ID)
	if b.Available != 1000 || b.Frozen != 0 {
		t.Fatalf("rejected payout must not touch the balance: %+v", b)
	}
}

func TestRequestPayoutFreezesThenSettles(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, newB2CStub(t, "0").URL)
	ctx := context.Background()

	st := seedStoreWithBalance(t, db, 100000)
	tx, err := svc.RequestPayout(ctx, st.ID, 60000)
	if err != nil {
		t.Fatalf("request payout: %v", err)
	}
	if tx.Status != payment.StatusProcessing || tx.ConversationID != testB2CConversationID {
		t.Fatalf("unexpected b2c record: %+v", tx)
	}

	b, _ := svc.GetBalance(ctx, st.ID)
	if b.Available != 40000 || b.Frozen != 60000 {
		t.Fatalf("payout should move funds into frozen: %+v", b)
	}
	entries, _ := svc.ListEntries(ctx, st.ID, 10)
	if len(entries) != 1 || entries[0].Type != earnings.TypePayout ||
		entries[0].Amount != -60000 || entries[0].Status != "pending" {
		t.Fatalf("expected a pending payout entry, got %+v", entries)
	}

	body := b2cResultBody(t, testB2CConversationID, 0)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleB2CResult(ctx, body, sig, testWebhookSecret); err != nil {
		t.Fatalf("handle b2c result: %v", err)
	}

	b, _ = svc.GetBalance(ctx, st.ID)
	if b.Available != 40000 || b.Frozen != 0 {
		t.Fatalf("settled payout should burn the frozen funds: %+v", b)
	}
	got, err := mysql.NewPaymentRepository(db).GetB2CByConversationID(ctx, testB2CConversationID)
	if err != nil || got.Status != payment.StatusCompleted || got.TransactionID != "TX-1" {
		t.Fatalf("b2c record not settled: %v, %+v", err, got)
	}
	entries, _ = svc.ListEntries(ctx, st.ID, 10)
	if len(entries) != 1 || entries[0].Status != "success" {
		t.Fatalf("payout entry should flip to success, got %+v", entries)
	}

	// 重复回调幂等：余额不再变动
	if err := svc.HandleB2CResult(ctx, body, sig, testWebhookSecret); err != nil {
		t.Fatalf("duplicate b2c result: %v", err)
	}
	b, _ = svc.GetBalance(ctx, st.ID)
	if b.Available != 40000 || b.Frozen != 0 {
		t.Fatalf("duplicate callback must be a no-op: %+v", b)
	}
}

func TestRequestPayoutUnfreezesOnGatewayReject(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, newB2CStub(t, "1").URL)
	ctx := context.Background()

	st := seedStoreWithBalance(t, db, 100000)
	if _, err := svc.RequestPayout(ctx, st.ID, 60000); err == nil {
		t.Fatal("gateway reject should fail the payout")
	}

	b, _ := svc.GetBalance(ctx, st.ID)
	if b.Available != 100000 || b.Frozen != 0 {
		t.Fatalf("sync failure must restore the balance: %+v", b)
	}
	entries, _ := svc.ListEntries(ctx, st.ID, 10)
	if len(entries) != 1 || entries[0].Type != earnings.TypePayoutReversal {
		t.Fatalf("expected a reversal entry, got %+v", entries)
	}
}

func TestHandleB2CResultRejectsBadSignature(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, "")

	body := b2cResultBody(t, testB2CConversationID, 0)
	err := svc.HandleB2CResult(context.Background(), body, "deadbeef", testWebhookSecret)
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestHandleB2CTimeoutReversesPayout(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, newB2CStub(t, "0").URL)
	ctx := context.Background()

	st := seedStoreWithBalance(t, db, 100000)
	if _, err := svc.RequestPayout(ctx, st.ID, 60000); err != nil {
		t.Fatalf("request payout: %v", err)
	}

	body := b2cResultBody(t, testB2CConversationID, 1)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleB2CTimeout(ctx, body, sig, testWebhookSecret); err != nil {
		t.Fatalf("handle timeout: %v", err)
	}

	b, _ := svc.GetBalance(ctx, st.ID)
	if b.Available != 100000 || b.Frozen != 0 {
		t.Fatalf("timeout must unfreeze the funds: %+v", b)
	}
	got, _ := mysql.NewPaymentRepository(db).GetB2CByConversationID(ctx, testB2CConversationID)
	if got.Status != payment.StatusFailed {
		t.Fatalf("timed-out b2c should be failed, got %s", got.Status)
	}
	entries, _ := svc.ListEntries(ctx, st.ID, 10)
	if len(entries) != 2 {
		t.Fatalf("expected payout + reversal entries, got %+v", entries)
	}
	// id 倒序：最新的一条是回补流水
	if entries[0].Type != earnings.TypePayoutReversal || entries[0].Amount != 60000 {
		t.Fatalf("expected reversal entry first, got %+v", entries[0])
	}
	if entries[1].Type != earnings.TypePayout || entries[1].Status != "failed" {
		t.Fatalf("payout entry should flip to failed, got %+v", entries[1])
	}
}

func TestCreditOrderIncomeDeductsCommission(t *testing.T) {
	db := newServiceTestDB(t)
	svc := newTestPayoutService(t, db, "")
	ctx := context.Background()

	// 默认抽成 10%
	st := seedStoreWithBalance(t, db, 0)
	o := &order.Order{ID: 1, Number: "DO20260825EARN"}
	err := svc.CreditOrderIncome(ctx, o, []*order.Item{
		{OrderID: 1, ProductID: 1, StoreID: st.ID, Name: "p", UnitPrice: 50000, Quantity: 2, Subtotal: 100000},
	})
	if err != nil {
		t.Fatalf("credit income: %v", err)
	}

	b, _ := svc.GetBalance(ctx, st.ID)
	if b.Available != 90000 {
		t.Fatalf("available = %d, want 90000 after 10%% commission", b.Available)
	}
	entries, _ := svc.ListEntries(ctx, st.ID, 10)
	if len(entries) != 1 || entries[0].Type != earnings.TypeOrderIncome || entries[0].Amount != 90000 {
		t.Fatalf("expected an order income entry of 90000, got %+v", entries)
	}
}
