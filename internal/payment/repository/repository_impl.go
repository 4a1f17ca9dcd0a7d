package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByReference(ctx context.Context, db *gorm.DB, studentID snowflake.ID, reference string) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).
		Where("student_id = ? AND reference = ?", studentID, reference).
		Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter) ([]domain.Payment, error) {
	var items []domain.Payment
	stmt := db.WithContext(ctx).Where("student_id = ?", filter.StudentID)
	if filter.From != nil {
		stmt = stmt.Where("paid_on >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("paid_on < ?", *filter.To)
	}
	err := stmt.Order("paid_on asc, id asc").Find(&items).Error
	return items, err
}
