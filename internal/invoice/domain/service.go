package domain

import (
	"context"
	"errors"
)

// GenerateChargesRequest selects the students to bill. All bills every
// enrolled student; otherwise StudentIDs is used as given after an existence check.
type GenerateChargesRequest struct {
	Period       string   `json:"period"`
	All          bool     `json:"-"`
	StudentIDs   []string `json:"-"`
	SkipExisting bool     `json:"skip_existing"`
}

type GenerateChargesResponse struct {
	Period       string `json:"period"`
	CreatedCount int    `json:"created_count"`
	SkippedCount int    `json:"skipped_count"`
	StudentCount int    `json:"student_count"`
	ItemCount    int    `json:"item_count"`
}

type ListChargesRequest struct {
	StudentID string
	Period    string
	Status    string
}

type Service interface {
	GenerateCharges(ctx context.Context, req GenerateChargesRequest) (GenerateChargesResponse, error)
	ListCharges(ctx context.Context, req ListChargesRequest) ([]ChargeView, error)
}

var (
	ErrInvalidStudentSelector = errors.New("invalid_student_selector")
	ErrInvalidStudent         = errors.New("invalid_student")
	ErrUnknownStudent         = errors.New("unknown_student")
	ErrInvalidStatus          = errors.New("invalid_charge_status")
	ErrDuplicateCharge        = errors.New("duplicate_charge")
)
