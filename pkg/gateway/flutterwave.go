package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const ProviderFlutterwave = "flutterwave"

// Flutterwave adapter. Unlike Paystack, wire amounts are already in major
// currency units.
type Flutterwave struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

func NewFlutterwave(baseURL, secretKey string, log *zap.Logger) *Flutterwave {
	return &Flutterwave{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With(zap.String("gateway", ProviderFlutterwave)),
	}
}

func (f *Flutterwave) Name() string { return ProviderFlutterwave }

type flutterwaveVerifyResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID       int64           `json:"id"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"data"`
}

func (f *Flutterwave) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	endpoint := fmt.Sprintf("%s/v3/transactions/verify_by_reference?tx_ref=%s",
		f.baseURL, url.QueryEscape(reference))

	body, err := f.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp flutterwaveVerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode flutterwave verify response: %w", err)
	}

	return &VerifyResult{
		Success:       resp.Status == "success" && resp.Data.Status == "successful",
		Amount:        resp.Data.Amount,
		Currency:      resp.Data.Currency,
		ProviderTxnID: fmt.Sprintf("%d", resp.Data.ID),
	}, nil
}

type flutterwaveTransferRequest struct {
	AccountBank   string          `json:"account_bank,omitempty"`
	AccountNumber string          `json:"account_number"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	Narration     string          `json:"narration"`
}

type flutterwaveTransferResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (f *Flutterwave) Transfer(ctx context.Context, dest Destination, amount decimal.Decimal, currency, reference string) (*TransferResult, error) {
	payload, err := json.Marshal(flutterwaveTransferRequest{
		AccountNumber: dest.AccountRef,
		Amount:        amount,
		Currency:      currency,
		Reference:     reference,
		Narration:     dest.Kind,
	})
	if err != nil {
		return nil, fmt.Errorf("encode flutterwave transfer request: %w", err)
	}

	body, err := f.do(ctx, http.MethodPost, f.baseURL+"/v3/transfers", payload)
	if err != nil {
		return nil, err
	}

	var resp flutterwaveTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode flutterwave transfer response: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("flutterwave transfer %s rejected: %s", reference, resp.Message)
	}

	return &TransferResult{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
	}, nil
}

func (f *Flutterwave) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build flutterwave request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.secretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		f.log.Error("Flutterwave request failed", zap.Error(err), zap.String("endpoint", endpoint))
		return nil, fmt.Errorf("flutterwave request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read flutterwave response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		f.log.Error("Flutterwave returned error status",
			zap.Int("status", res.StatusCode),
			zap.String("endpoint", endpoint),
		)
		return nil, fmt.Errorf("flutterwave returned status %d", res.StatusCode)
	}

	return body, nil
}
