package billing

import "errors"

var (
	ErrNotConfigured     = errors.New("payment gateway not configured")
	ErrInvalidInput      = errors.New("invalid payment input")
	ErrInvalidPlan       = errors.New("invalid plan")
	ErrSignatureMismatch = errors.New("payment signature mismatch")
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrGateway           = errors.New("payment gateway error")
)
