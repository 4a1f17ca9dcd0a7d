package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type ListPaymentFilter struct {
	StudentID snowflake.ID
	From      *time.Time
	To        *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByReference(ctx context.Context, db *gorm.DB, studentID snowflake.ID, reference string) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, filter ListPaymentFilter) ([]Payment, error)
}
