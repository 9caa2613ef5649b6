package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"app/internal/config"
	"app/internal/usecase"
)

const defaultTimeout = 10 * time.Second

// Client はPaystackの照会API（transaction/verify）を呼ぶ。ローカル状態は持たない。
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	publicKey  string
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    cfg.PaystackBaseURL,
		secretKey:  cfg.PaystackSecretKey,
		publicKey:  cfg.PaystackPublicKey,
	}
}

// Paystackのレスポンス envelope
type verifyEnvelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		Status   string `json:"status"`
		Amount   int64  `json:"amount"`
		Customer struct {
			Email string `json:"email"`
		} `json:"customer"`
	} `json:"data"`
}

func (c *Client) Verify(ctx context.Context, reference string) (usecase.VerifyResult, error) {
	url := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, reference)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return usecase.VerifyResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		//ネットワーク・タイムアウトは再試行可能な失敗として返す
		return usecase.VerifyResult{}, fmt.Errorf("%w: %v", usecase.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return usecase.VerifyResult{}, fmt.Errorf("%w: status %d", usecase.ErrGatewayUnavailable, resp.StatusCode)
	}

	var env verifyEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return usecase.VerifyResult{}, fmt.Errorf("%w: %v", usecase.ErrGatewayUnavailable, err)
	}

	return usecase.VerifyResult{
		Captured:    env.Status && env.Data.Status == "success",
		AmountMinor: env.Data.Amount,
		PayerEmail:  env.Data.Customer.Email,
	}, nil
}

// PublicKey はフロントに渡す公開キー。
func (c *Client) PublicKey() string {
	return c.publicKey
}
