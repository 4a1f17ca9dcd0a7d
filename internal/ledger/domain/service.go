package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"gorm.io/gorm"
)

type RecalculateRequest struct {
	StudentID string
	Period    string
}

type RecalculateForwardRequest struct {
	StudentID string
	From      string
}

type GetBalanceRequest struct {
	StudentID string
	Period    string
}

type Service interface {
	// Recalculate rebuilds one month under the student's lock.
	Recalculate(ctx context.Context, req RecalculateRequest) (MonthlyBalance, error)
	// RecalculateForward rebuilds From and every later month up to the latest
	// materialized one, oldest first.
	RecalculateForward(ctx context.Context, req RecalculateForwardRequest) ([]MonthlyBalance, error)
	GetBalance(ctx context.Context, req GetBalanceRequest) (MonthlyBalance, error)

	// RecalculateWithin and RecalculateForwardWithin run inside a caller-owned
	// transaction that already holds the student's lock.
	RecalculateWithin(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, p period.Period) (MonthlyBalance, error)
	RecalculateForwardWithin(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, from period.Period) ([]MonthlyBalance, error)
	// RefreshAfterWrite applies the configured policy after a charge or payment
	// write touching p: single-month by default, forward cascade when enabled.
	RefreshAfterWrite(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, p period.Period, trigger string) error
}

var (
	ErrInvalidStudent  = errors.New("invalid_student")
	ErrBalanceNotFound = errors.New("balance_not_found")
)
