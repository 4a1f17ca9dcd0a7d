package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, item *Item) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Item, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Item, error)
	FindByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]Item, error)
	List(ctx context.Context, db *gorm.DB, activeOnly bool) ([]Item, error)
	ListBillable(ctx context.Context, db *gorm.DB) ([]Item, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
}
