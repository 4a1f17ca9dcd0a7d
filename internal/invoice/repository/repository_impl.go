package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	insertBatchSize = 500
	lookupChunkSize = 500
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) BatchInsert(ctx context.Context, db *gorm.DB, charges []domain.Charge) error {
	if len(charges) == 0 {
		return nil
	}
	return db.WithContext(ctx).CreateInBatches(charges, insertBatchSize).Error
}

func (r *repo) ExistingPairs(ctx context.Context, db *gorm.DB, studentIDs []snowflake.ID, p period.Period) ([]domain.BilledPair, error) {
	var pairs []domain.BilledPair
	for start := 0; start < len(studentIDs); start += lookupChunkSize {
		end := start + lookupChunkSize
		if end > len(studentIDs) {
			end = len(studentIDs)
		}
		var chunk []domain.BilledPair
		err := db.WithContext(ctx).
			Model(&domain.Charge{}).
			Select("student_id, catalog_item_id").
			Where("billing_period = ? AND student_id IN ?", p, studentIDs[start:end]).
			Scan(&chunk).Error
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, chunk...)
	}
	return pairs, nil
}

func (r *repo) ListOpenForUpdate(ctx context.Context, db *gorm.DB, studentID snowflake.ID) ([]domain.Charge, error) {
	var charges []domain.Charge
	err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("student_id = ? AND status = ?", studentID, domain.ChargeStatusOpen).
		Order("billing_period asc, id asc").
		Find(&charges).Error
	return charges, err
}

func (r *repo) MarkSettled(ctx context.Context, db *gorm.DB, ids []snowflake.ID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.WithContext(ctx).
		Model(&domain.Charge{}).
		Where("id IN ? AND status = ?", ids, domain.ChargeStatusOpen).
		Update("status", domain.ChargeStatusSettled)
	return result.RowsAffected, result.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListChargeFilter) ([]domain.ChargeView, error) {
	var charges []domain.ChargeView
	stmt := db.WithContext(ctx).
		Table("charges AS c").
		Select("c.*, ci.code AS item_code, ci.name AS item_name").
		Joins("JOIN catalog_items ci ON ci.id = c.catalog_item_id").
		Where("c.student_id = ?", filter.StudentID)
	if filter.Period != nil {
		stmt = stmt.Where("c.billing_period = ?", *filter.Period)
	}
	if filter.Status != "" {
		stmt = stmt.Where("c.status = ?", filter.Status)
	}
	err := stmt.
		Order("c.billing_period asc, ci.display_order asc, c.id asc").
		Scan(&charges).Error
	return charges, err
}
