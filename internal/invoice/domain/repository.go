package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"gorm.io/gorm"
)

type ListChargeFilter struct {
	StudentID snowflake.ID
	Period    *period.Period
	Status    ChargeStatus
}

type Repository interface {
	BatchInsert(ctx context.Context, db *gorm.DB, charges []Charge) error
	ExistingPairs(ctx context.Context, db *gorm.DB, studentIDs []snowflake.ID, p period.Period) ([]BilledPair, error)
	// ListOpenForUpdate returns the student's OPEN charges oldest period first,
	// ties broken by id, row-locked for the current transaction.
	ListOpenForUpdate(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]Charge, error)
	MarkSettled(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter ListChargeFilter) ([]ChargeView, error)
}
