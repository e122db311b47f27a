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

const ProviderPaystack = "paystack"

// Paystack speaks the subset of the Paystack API the engine needs:
// transaction verification and balance transfers. Amounts on the wire
// are in the minor currency unit.
type Paystack struct {
	baseURL   string
	secretKey string
	client    *http.Client
	log       *zap.Logger
}

func NewPaystack(baseURL, secretKey string, log *zap.Logger) *Paystack {
	return &Paystack{
		baseURL:   baseURL,
		secretKey: secretKey,
		client:    &http.Client{Timeout: 30 * time.Second},
		log:       log.With(zap.String("gateway", ProviderPaystack)),
	}
}

func (p *Paystack) Name() string { return ProviderPaystack }

type paystackVerifyResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID       int64  `json:"id"`
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	} `json:"data"`
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	endpoint := fmt.Sprintf("%s/transaction/verify/%s", p.baseURL, url.PathEscape(reference))

	body, err := p.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var resp paystackVerifyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode paystack verify response: %w", err)
	}

	return &VerifyResult{
		Success:       resp.Status && resp.Data.Status == "success",
		Amount:        decimal.NewFromInt(resp.Data.Amount).Div(decimal.NewFromInt(100)),
		Currency:      resp.Data.Currency,
		ProviderTxnID: fmt.Sprintf("%d", resp.Data.ID),
	}, nil
}

type paystackTransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason"`
}

type paystackTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

func (p *Paystack) Transfer(ctx context.Context, dest Destination, amount decimal.Decimal, currency, reference string) (*TransferResult, error) {
	payload, err := json.Marshal(paystackTransferRequest{
		Source:    "balance",
		Amount:    amount.Mul(decimal.NewFromInt(100)).IntPart(),
		Recipient: dest.AccountRef,
		Reference: reference,
		Reason:    dest.Kind,
	})
	if err != nil {
		return nil, fmt.Errorf("encode paystack transfer request: %w", err)
	}

	body, err := p.do(ctx, http.MethodPost, p.baseURL+"/transfer", payload)
	if err != nil {
		return nil, err
	}

	var resp paystackTransferResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode paystack transfer response: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack transfer %s rejected: %s", reference, resp.Message)
	}

	return &TransferResult{
		Reference: resp.Data.Reference,
		Status:    resp.Data.Status,
	}, nil
}

func (p *Paystack) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build paystack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := p.client.Do(req)
	if err != nil {
		p.log.Error("Paystack request failed", zap.Error(err), zap.String("endpoint", endpoint))
		return nil, fmt.Errorf("paystack request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read paystack response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		p.log.Error("Paystack returned error status",
			zap.Int("status", res.StatusCode),
			zap.String("endpoint", endpoint),
		)
		return nil, fmt.Errorf("paystack returned status %d", res.StatusCode)
	}

	return body, nil
}
