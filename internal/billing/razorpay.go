package billing

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var razorpayBaseURL = "https://api.razorpay.com/v1"

// Gateway creates orders and checks checkout signatures.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
	KeyID() string
}

// OrderRequest is a gateway order. Amount is in paise.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

// Order is the gateway's view of a created order.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// RazorpayClient implements Gateway against the Razorpay Orders API.
type RazorpayClient struct {
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewRazorpayClient returns ErrNotConfigured when either key is missing.
func NewRazorpayClient(keyID, keySecret string, timeout time.Duration) (*RazorpayClient, error) {
	if strings.TrimSpace(keyID) == "" || strings.TrimSpace(keySecret) == "" {
		return nil, ErrNotConfigured
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayClient{
		keyID:      keyID,
		keySecret:  keySecret,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *RazorpayClient) KeyID() string { return c.keyID }

// CreateOrder posts a new order.
func (c *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Order{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, razorpayBaseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return Order{}, err
	}
	httpReq.SetBasicAuth(c.keyID, c.keySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Order{}, ctxErr
		}
		return Order{}, fmt.Errorf("%w: razorpay request: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("%w: razorpay read: %v", ErrGateway, err)
	}
	if resp.StatusCode >= 400 {
		return Order{}, fmt.Errorf("%w: razorpay status %d: %s", ErrGateway, resp.StatusCode, razorpayErrorDetail(body))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return Order{}, fmt.Errorf("%w: razorpay response parse: %v", ErrGateway, err)
	}
	if order.ID == "" {
		return Order{}, fmt.Errorf("%w: razorpay response missing order id", ErrGateway)
	}
	return order, nil
}

// VerifySignature checks the hex HMAC-SHA256 of "order|payment" under the key secret.
func (c *RazorpayClient) VerifySignature(orderID, paymentID, signature string) bool {
	return hmac.Equal([]byte(Sign(c.keySecret, orderID, paymentID)), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// Sign computes the checkout signature for an order and payment pair.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func razorpayErrorDetail(body []byte) string {
	var parsed struct {
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error != nil {
		return parsed.Error.Code + ": " + parsed.Error.Description
	}
	return strings.TrimSpace(string(body))
}

var _ Gateway = (*RazorpayClient)(nil)
