package pinetwork

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/seludoto/dolesecommerce/internal/config"
)

// Client Pi Network 平台 API 客户端
type Client struct {
	cfg  *config.PiConfig
	http *http.Client
}

// NewClient 创建 Pi 客户端
func NewClient(cfg *config.PiConfig) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 30 * time.Second},
	}
}

// Payment 平台侧的支付对象
type Payment struct {
	Identifier string                 `json:"identifier"`
	UserUID    string                 `json:"user_uid"`
	Amount     float64                `json:"amount"`
	Memo       string                 `json:"memo"`
	Metadata   map[string]interface{} `json:"metadata"`
	Status     struct {
		DeveloperApproved   bool `json:"developer_approved"`
		TransactionVerified bool `json:"transaction_verified"`
		DeveloperCompleted  bool `json:"developer_completed"`
		Cancelled           bool `json:"cancelled"`
		UserCancelled       bool `json:"user_cancelled"`
	} `json:"status"`
	Transaction *struct {
		TxID     string `json:"txid"`
		Verified bool   `json:"verified"`
	} `json:"transaction"`
}

// GetPayment 查询支付，回调处理前必须据此核对金额与状态
func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodGet, "/v2/payments/"+paymentID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApprovePayment 开发者批准支付，用户随后才能提交链上交易
func (c *Client) ApprovePayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/approve", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CompletePayment 以链上 txid 完结支付
func (c *Client) CompletePayment(ctx context.Context, paymentID, txid string) (*Payment, error) {
	body := map[string]string{"txid": txid}
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/complete", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CancelPayment 取消支付
func (c *Client) CancelPayment(ctx context.Context, paymentID string) (*Payment, error) {
	var out Payment
	if err := c.do(ctx, http.MethodPost, "/v2/payments/"+paymentID+"/cancel", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Key "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pi request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pi request %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
