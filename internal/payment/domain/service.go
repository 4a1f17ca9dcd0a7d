package domain

import (
	"context"
	"errors"
)

type RecordPaymentRequest struct {
	StudentID string `json:"student_id"`
	PaidOn    string `json:"paid_on"`
	Amount    int64  `json:"amount"`
	Method    string `json:"method"`
	// Reference makes retries safe: a second request with the same student and
	// reference returns the stored payment instead of recording another one.
	Reference string `json:"reference"`
}

type RecordPaymentResponse struct {
	Payment          Payment  `json:"payment"`
	SettledChargeIDs []string `json:"settled_charge_ids"`
	Remaining        int64    `json:"remaining"`
	Replayed         bool     `json:"replayed"`
}

type ListPaymentsRequest struct {
	StudentID string
	Period    string
}

type Service interface {
	RecordPayment(ctx context.Context, req RecordPaymentRequest) (RecordPaymentResponse, error)
	ListPayments(ctx context.Context, req ListPaymentsRequest) ([]Payment, error)
}

var (
	ErrInvalidStudent   = errors.New("invalid_student")
	ErrInvalidAmount    = errors.New("invalid_amount")
	ErrInvalidDate      = errors.New("invalid_paid_on")
	ErrInvalidMethod    = errors.New("invalid_method")
	ErrInvalidReference = errors.New("invalid_reference")
)

// ErrDuplicateReference is returned when a concurrent writer stored the same
// reference first.
var ErrDuplicateReference = errors.New("duplicate_payment_reference")
