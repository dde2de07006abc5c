package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/order"
	"github.com/seludoto/dolesecommerce/internal/datamodels/payment"
	"github.com/seludoto/dolesecommerce/internal/gateway/mpesa"
	"github.com/seludoto/dolesecommerce/internal/gateway/pinetwork"
)

// fakePaymentRepo 内存版支付仓储，只实现回调幂等测试用到的方法
type fakePaymentRepo struct {
	payments map[int64]*payment.Payment
	c2bs     map[string]*payment.MpesaC2B
	pis      map[string]*payment.PiPayment
	updates  int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		payments: make(map[int64]*payment.Payment),
		c2bs:     make(map[string]*payment.MpesaC2B),
		pis:      make(map[string]*payment.PiPayment),
	}
}

func (f *fakePaymentRepo) Create(ctx context.Context, p *payment.Payment) error {
	p.ID = int64(len(f.payments) + 1)
	f.payments[p.ID] = p
	return nil
}

func (f *fakePaymentRepo) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	p, ok := f.payments[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePaymentRepo) GetByOrderID(ctx context.Context, orderID int64) (*payment.Payment, error) {
	for _, p := range f.payments {
		if p.OrderID == orderID {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) GetByReference(ctx context.Context, ref string) (*payment.Payment, error) {
	for _, p := range f.payments {
		if p.Reference == ref {
			return p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) Update(ctx context.Context, p *payment.Payment) error {
	f.payments[p.ID] = p
	f.updates++
	return nil
}

func (f *fakePaymentRepo) ListRecent(ctx context.Context, limit int) ([]*payment.Payment, error) {
	return nil, nil
}

func (f *fakePaymentRepo) ListByStatus(ctx context.Context, status string, limit int) ([]*payment.Payment, error) {
	return nil, nil
}

func (f *fakePaymentRepo) CreateC2B(ctx context.Context, t *payment.MpesaC2B) error {
	t.ID = int64(len(f.c2bs) + 1)
	f.c2bs[t.CheckoutRequestID] = t
	return nil
}

func (f *fakePaymentRepo) GetC2BByCheckoutID(ctx context.Context, checkoutRequestID string) (*payment.MpesaC2B, error) {
	t, ok := f.c2bs[checkoutRequestID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

func (f *fakePaymentRepo) UpdateC2B(ctx context.Context, t *payment.MpesaC2B) error {
	f.c2bs[t.CheckoutRequestID] = t
	return nil
}

func (f *fakePaymentRepo) CreateB2C(ctx context.Context, t *payment.MpesaB2C) error { return nil }
func (f *fakePaymentRepo) UpdateB2C(ctx context.Context, t *payment.MpesaB2C) error { return nil }
func (f *fakePaymentRepo) GetB2CByConversationID(ctx context.Context, conversationID string) (*payment.MpesaB2C, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakePaymentRepo) CreatePi(ctx context.Context, t *payment.PiPayment) error {
	t.ID = int64(len(f.pis) + 1)
	f.pis[t.PiPaymentID] = t
	return nil
}

func (f *fakePaymentRepo) UpdatePi(ctx context.Context, t *payment.PiPayment) error {
	f.pis[t.PiPaymentID] = t
	return nil
}

func (f *fakePaymentRepo) GetPiByPiPaymentID(ctx context.Context, piPaymentID string) (*payment.PiPayment, error) {
	t, ok := f.pis[piPaymentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return t, nil
}

// fakeOrderRepo 内存版订单仓储
type fakeOrderRepo struct {
	orders map[int64]*order.Order
}

func (f *fakeOrderRepo) CreateWithItems(ctx context.Context, o *order.Order, items []*order.Item) error {
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeOrderRepo) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) ListRecent(ctx context.Context, limit int) ([]*order.Order, error) {
	return nil, nil
}

func (f *fakeOrderRepo) ListItems(ctx context.Context, orderID int64) ([]*order.Item, error) {
	return nil, nil
}

func (f *fakeOrderRepo) UpdateStatus(ctx context.Context, id int64, status int) error { return nil }

func (f *fakeOrderRepo) MarkPaid(ctx context.Context, id int64, paidAt time.Time) (bool, error) {
	o, ok := f.orders[id]
	if !ok || o.Status != order.StatusCreated {
		return false, nil
	}
	o.Status = order.StatusPaid
	o.PaidAt = &paidAt
	return true, nil
}

func (f *fakeOrderRepo) CountByUser(ctx context.Context, userID int64) (int64, error) {
	return 0, nil
}

const testWebhookSecret = "webhook-secret"

func newTestPaymentService(repo *fakePaymentRepo) *PaymentService {
	orders := &fakeOrderRepo{orders: map[int64]*order.Order{
		1: {ID: 1, Number: "DO20260825TEST", UserID: 7, TotalAmount: 349900, Status: order.StatusCreated},
	}}
	return NewPaymentService(
		repo,
		orders,
		nil, nil, nil,
		&config.MpesaConfig{WebhookSecret: testWebhookSecret},
		&config.PiConfig{KESPerPi: 500000},
	)
}

func stkCallbackBody(t *testing.T, checkoutID string, resultCode int) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]interface{}{
		"Body": map[string]interface{}{
			"stkCallback": map[string]interface{}{
				"MerchantRequestID": "mr-1",
				"CheckoutRequestID": checkoutID,
				"ResultCode":        resultCode,
				"ResultDesc":        "desc",
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal callback: %v", err)
	}
	return raw
}

func TestHandleSTKCallbackRejectsBadSignature(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	body := stkCallbackBody(t, "ws_CO_1", 0)
	err := svc.HandleSTKCallback(context.Background(), body, "deadbeef")
	if !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestHandleSTKCallbackIgnoresUnknownCheckoutID(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	body := stkCallbackBody(t, "ws_CO_unknown", 0)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleSTKCallback(context.Background(), body, sig); err != nil {
		t.Fatalf("unknown checkout id should be a no-op, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("no payment should be touched, got %d updates", repo.updates)
	}
}

func TestHandleSTKCallbackIdempotentOnCompleted(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusCompleted, Reference: "ref-1"}
	_ = repo.Create(context.Background(), p)
	_ = repo.CreateC2B(context.Background(), &payment.MpesaC2B{
		PaymentID: p.ID, CheckoutRequestID: "ws_CO_1", PhoneNumber: "254712345678",
		Amount: 349900, Status: payment.StatusCompleted,
	})

	body := stkCallbackBody(t, "ws_CO_1", 0)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleSTKCallback(context.Background(), body, sig); err != nil {
		t.Fatalf("duplicate callback should be a no-op, got %v", err)
	}
	if repo.updates != 0 {
		t.Fatalf("completed payment must not change, got %d updates", repo.updates)
	}
}

func TestHandleSTKCallbackFailureResult(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusProcessing, Reference: "ref-1"}
	_ = repo.Create(context.Background(), p)
	_ = repo.CreateC2B(context.Background(), &payment.MpesaC2B{
		PaymentID: p.ID, CheckoutRequestID: "ws_CO_1", PhoneNumber: "254712345678",
		Amount: 349900, Status: payment.StatusPending,
	})

	// 1032: Request cancelled by user
	body := stkCallbackBody(t, "ws_CO_1", 1032)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleSTKCallback(context.Background(), body, sig); err != nil {
		t.Fatalf("failure callback: %v", err)
	}

	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusFailed {
		t.Fatalf("expected failed payment, got %s", got.Status)
	}
	c2b, _ := repo.GetC2BByCheckoutID(context.Background(), "ws_CO_1")
	if c2b.Status != payment.StatusFailed {
		t.Fatalf("expected failed c2b, got %s", c2b.Status)
	}
	if c2b.ResultCode != "1032" {
		t.Fatalf("expected result code 1032, got %s", c2b.ResultCode)
	}
}

func TestHandleSTKCallbackFailedCannotComplete(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusFailed, Reference: "ref-1"}
	_ = repo.Create(context.Background(), p)
	_ = repo.CreateC2B(context.Background(), &payment.MpesaC2B{
		PaymentID: p.ID, CheckoutRequestID: "ws_CO_1", PhoneNumber: "254712345678",
		Amount: 349900, Status: payment.StatusFailed,
	})

	// 迟到的成功回调不能复活已失败的支付单
	body := stkCallbackBody(t, "ws_CO_1", 0)
	sig := mpesa.Sign(testWebhookSecret, body)
	if err := svc.HandleSTKCallback(context.Background(), body, sig); err != nil {
		t.Fatalf("late success callback should be ignored, got %v", err)
	}
	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusFailed {
		t.Fatalf("failed payment must stay failed, got %s", got.Status)
	}
}

func TestRefundOnlyFromCompleted(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusCompleted, Reference: "ref-1"}
	_ = repo.Create(context.Background(), p)

	if err := svc.Refund(context.Background(), p.ID, 99, "客户申请退款"); err != nil {
		t.Fatalf("refund completed payment: %v", err)
	}
	got, _ := repo.GetByID(context.Background(), p.ID)
	if got.Status != payment.StatusRefunded {
		t.Fatalf("expected refunded, got %s", got.Status)
	}
	if got.ProcessedBy == nil || *got.ProcessedBy != 99 {
		t.Fatal("refund should record the admin who processed it")
	}

	// 再次退款与对 pending 退款都应被状态机拒绝
	if err := svc.Refund(context.Background(), p.ID, 99, "again"); !errors.Is(err, ErrPaymentTransition) {
		t.Fatalf("expected ErrPaymentTransition, got %v", err)
	}

	p2 := &payment.Payment{OrderID: 2, UserID: 7, Status: payment.StatusPending, Reference: "ref-2"}
	_ = repo.Create(context.Background(), p2)
	if err := svc.Refund(context.Background(), p2.ID, 99, "nope"); !errors.Is(err, ErrPaymentTransition) {
		t.Fatalf("expected ErrPaymentTransition for pending, got %v", err)
	}
}

// newDarajaStub 本地 Daraja 桩：发 token，STK 请求固定受理
func newDarajaStub(t *testing.T, checkoutID string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token", "expires_in": "3599",
		})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"MerchantRequestID":   "mr-1",
			"CheckoutRequestID":   checkoutID,
			"ResponseCode":        "0",
			"ResponseDescription": "Accepted",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newPiStub 本地 Pi 平台桩，按参数返回平台侧取消状态
func newPiStub(t *testing.T, cancelled bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v2/payments/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"identifier": "pi-pay-1",
			"amount":     0.6998,
			"status":     map[string]bool{"cancelled": cancelled, "user_cancelled": false},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newGatewayPaymentService 接真实网关客户端（指向本地桩）的服务实例
func newGatewayPaymentService(repo *fakePaymentRepo, darajaURL, piURL string) *PaymentService {
	orders := &fakeOrderRepo{orders: map[int64]*order.Order{
		1: {ID: 1, Number: "DO20260825TEST", UserID: 7, TotalAmount: 349900, Status: order.StatusCreated},
	}}
	mpesaCfg := &config.MpesaConfig{
		ConsumerKey: "ck", ConsumerSecret: "cs",
		ShortCode: "174379", Passkey: "pk",
		BaseURL: darajaURL, CallbackBase: "http://localhost",
		WebhookSecret: testWebhookSecret,
	}
	piCfg := &config.PiConfig{APIKey: "pi-key", BaseURL: piURL, KESPerPi: 500000}
	return NewPaymentService(
		repo,
		orders,
		mpesa.NewClient(mpesaCfg),
		pinetwork.NewClient(piCfg),
		nil,
		mpesaCfg,
		piCfg,
	)
}

func TestInitiateMpesaRetriesFailedPayment(t *testing.T) {
	repo := newFakePaymentRepo()
	srv := newDarajaStub(t, "ws_CO_retry")
	svc := newGatewayPaymentService(repo, srv.URL, "")
	ctx := context.Background()

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusFailed,
		Reference: "ref-old", FailureReason: "Request cancelled by user"}
	_ = repo.Create(ctx, p)

	got, err := svc.InitiateMpesa(ctx, 1, "254712345678")
	if err != nil {
		t.Fatalf("re-initiate after failure: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("retry must reuse the existing payment row, got id %d", got.ID)
	}
	if got.Status != payment.StatusProcessing {
		t.Fatalf("retried payment should be processing, got %s", got.Status)
	}
	if got.Reference == "ref-old" {
		t.Fatal("retry must rotate the payment reference")
	}
	if got.FailureReason != "" {
		t.Fatalf("failure reason should be cleared, got %q", got.FailureReason)
	}

	// 重试后的成功回调必须能落到 completed，而不是被当成终态重复丢弃
	body := stkCallbackBody(t, "ws_CO_retry", 0)
	sig := mpesa.Sign(testWebhookSecret, body)
	// MQ 未接入，事件发布会报错，但支付单状态先于发布落库
	_ = svc.HandleSTKCallback(ctx, body, sig)

	final, _ := repo.GetByID(ctx, p.ID)
	if final.Status != payment.StatusCompleted {
		t.Fatalf("success callback after retry should complete the payment, got %s", final.Status)
	}
}

func TestInitiatePiSwitchesMethodOnPendingPayment(t *testing.T) {
	repo := newFakePaymentRepo()
	svc := newTestPaymentService(repo)
	ctx := context.Background()

	p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodMpesa,
		Amount: 349900, Status: payment.StatusPending, Reference: "ref-1"}
	_ = repo.Create(ctx, p)

	got, err := svc.InitiatePi(ctx, 1, "pi-pay-1")
	if err != nil {
		t.Fatalf("initiate pi on pending mpesa payment: %v", err)
	}
	if got.ID != p.ID {
		t.Fatalf("should reuse the pending payment row, got id %d", got.ID)
	}
	if got.Method != payment.MethodPi {
		t.Fatalf("payment method should follow the latest choice, got %s", got.Method)
	}
	pp, err := repo.GetPiByPiPaymentID(ctx, "pi-pay-1")
	if err != nil || pp.PaymentID != p.ID {
		t.Fatalf("pi record should point at the reused payment: %v, %+v", err, pp)
	}
}

func TestCancelPiRequiresPlatformCancellation(t *testing.T) {
	ctx := context.Background()

	seed := func(repo *fakePaymentRepo) *payment.Payment {
		p := &payment.Payment{OrderID: 1, UserID: 7, Method: payment.MethodPi,
			Amount: 349900, Status: payment.StatusPending, Reference: "ref-1"}
		_ = repo.Create(ctx, p)
		_ = repo.CreatePi(ctx, &payment.PiPayment{
			PaymentID: p.ID, PiPaymentID: "pi-pay-1",
			AmountPi: 0.6998, KESPerPi: 500000, Status: payment.StatusPending,
		})
		return p
	}

	// 平台侧仍在进行中：取消请求必须被拒绝，本地状态不动
	repo := newFakePaymentRepo()
	svc := newGatewayPaymentService(repo, "", newPiStub(t, false).URL)
	p := seed(repo)
	if err := svc.CancelPi(ctx, "pi-pay-1"); err == nil {
		t.Fatal("cancel must fail while the platform still holds the payment open")
	}
	got, _ := repo.GetByID(ctx, p.ID)
	if got.Status != payment.StatusPending {
		t.Fatalf("payment must stay pending, got %s", got.Status)
	}

	// 平台侧已取消：本地支付单与 Pi 流水一起落取消
	repo = newFakePaymentRepo()
	svc = newGatewayPaymentService(repo, "", newPiStub(t, true).URL)
	p = seed(repo)
	if err := svc.CancelPi(ctx, "pi-pay-1"); err != nil {
		t.Fatalf("cancel with platform confirmation: %v", err)
	}
	got, _ = repo.GetByID(ctx, p.ID)
	if got.Status != payment.StatusCancelled {
		t.Fatalf("payment should be cancelled, got %s", got.Status)
	}
	pp, _ := repo.GetPiByPiPaymentID(ctx, "pi-pay-1")
	if pp.Status != payment.StatusCancelled {
		t.Fatalf("pi record should be cancelled, got %s", pp.Status)
	}
}
