package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
)

type CreateStudentRequest struct {
	Name   string `json:"name"`
	Cohort string `json:"cohort"`
}

type ListStudentRequest struct {
	PageToken string
	PageSize  int
	Cohort    string
	Status    string
}

type ListStudentFilter struct {
	Cohort string
	Status Status
}

type ListStudentResponse struct {
	pagination.PageInfo
	Students []Student `json:"students"`
}

type Service interface {
	Create(ctx context.Context, req CreateStudentRequest) (Student, error)
	GetByID(ctx context.Context, id string) (Student, error)
	List(ctx context.Context, req ListStudentRequest) (ListStudentResponse, error)
	SetStatus(ctx context.Context, id string, status string) (Student, error)

	// ListEnrolledIDs returns every active student, ordered by id.
	ListEnrolledIDs(ctx context.Context) ([]snowflake.ID, error)
	// FindMissing returns the ids that are not in the directory.
	FindMissing(ctx context.Context, ids []snowflake.ID) ([]snowflake.ID, error)
	// Exists reports whether id is a known student.
	Exists(ctx context.Context, id snowflake.ID) (bool, error)
	// Require returns ErrNotFound unless id is a known student.
	Require(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("student_not_found")
)
