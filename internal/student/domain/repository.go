package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, student *Student) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Student, error)
	List(ctx context.Context, db *gorm.DB, filter ListStudentFilter, page pagination.Pagination) ([]*Student, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status) (int64, error)
	ListIDsByStatus(ctx context.Context, db *gorm.DB, status Status) ([]snowflake.ID, error)
	ExistingIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]snowflake.ID, error)
	// LockForUpdate row-locks the given students for the rest of the transaction.
	LockForUpdate(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error
}
