package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"gorm.io/gorm"
)

type Repository interface {
	Find(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (*MonthlyBalance, error)
	Upsert(ctx context.Context, db *gorm.DB, balance *MonthlyBalance) error
	// LatestPeriod returns the newest materialized period for the student, or
	// the zero Period when none exists.
	LatestPeriod(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (period.Period, error)

	// SumCharges totals every charge billed to the student for p, whatever its status.
	SumCharges(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (int64, error)
	// SumPayments totals payments dated inside [p.Start, p.End).
	SumPayments(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (int64, error)
}
