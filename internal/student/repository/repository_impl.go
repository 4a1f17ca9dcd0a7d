package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, student *domain.Student) error {
	return db.WithContext(ctx).Create(student).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Student, error) {
	var student domain.Student
	err := db.WithContext(ctx).Where("id = ?", id).Take(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListStudentFilter, page pagination.Pagination) ([]*domain.Student, error) {
	var students []*domain.Student
	stmt := db.WithContext(ctx).Model(&domain.Student{})
	if filter.Cohort != "" {
		stmt = stmt.Where("cohort = ?", filter.Cohort)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if page.PageToken != "" {
		cursor, err := pagination.DecodeCursor(page.PageToken)
		if err != nil {
			return nil, err
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
		stmt = stmt.Where("id > ?", afterID)
	}
	err := stmt.
		Order("id asc").
		Limit(page.Limit() + 1).
		Find(&students).Error
	if err != nil {
		return nil, err
	}
	return students, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Student{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": db.NowFunc(),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) ListIDsByStatus(ctx context.Context, db *gorm.DB, status domain.Status) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Student{}).
		Where("status = ?", status).
		Order("id asc").
		Pluck("id", &ids).Error
	return ids, err
}

func (r *repo) ExistingIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]snowflake.ID, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []snowflake.ID
	err := db.WithContext(ctx).
		Model(&domain.Student{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error
	return found, err
}

func (r *repo) LockForUpdate(ctx context.Context, db *gorm.DB, ids []snowflake.ID) error {
	if len(ids) == 0 {
		return nil
	}
	var locked []snowflake.ID
	return db.WithContext(ctx).
		Model(&domain.Student{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).
		Order("id asc").
		Pluck("id", &locked).Error
}
