package billing

import "time"

// Payment statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

const currencyINR = "INR"

// Payment is a plan purchase. Amount is in whole rupees.
type Payment struct {
	ID        string    `json:"id"`
	AccountID string    `json:"-"`
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId,omitempty"`
	Plan      string    `json:"plan"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderInput is the body of POST /payment/create-order. Amount is optional;
// when sent it must equal the plan price.
type OrderInput struct {
	Plan   string `json:"plan"`
	Amount int64  `json:"amount"`
}

// OrderResult is handed to the checkout widget.
type OrderResult struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

// VerifyInput is the body of POST /payment/verify.
type VerifyInput struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
	Plan      string `json:"plan"`
}
