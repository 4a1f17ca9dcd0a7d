package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Find(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (*domain.MonthlyBalance, error) {
	var balance domain.MonthlyBalance
	err := db.WithContext(ctx).
		Where("student_id = ? AND period = ?", studentID, p).
		Take(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, balance *domain.MonthlyBalance) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "period"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"previous_balance",
				"charges",
				"payments",
				"balance",
			}),
		}).
		Create(balance).Error
}

func (r *repo) LatestPeriod(ctx context.Context, db *gorm.DB, studentID snowflake.ID) (period.Period, error) {
	var latest sql.NullString
	err := db.WithContext(ctx).
		Model(&domain.MonthlyBalance{}).
		Where("student_id = ?", studentID).
		Select("MAX(period)").
		Scan(&latest).Error
	if err != nil {
		return period.Period{}, err
	}
	if !latest.Valid || latest.String == "" {
		return period.Period{}, nil
	}
	return period.Parse(latest.String)
}

func (r *repo) SumCharges(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM charges WHERE student_id = ? AND billing_period = ?`,
		studentID,
		p,
	).Scan(&total).Error
	return total, err
}

func (r *repo) SumPayments(ctx context.Context, db *gorm.DB, studentID snowflake.ID, p period.Period) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM payments WHERE student_id = ? AND paid_on >= ? AND paid_on < ?`,
		studentID,
		p.Start(),
		p.End(),
	).Scan(&total).Error
	return total, err
}
