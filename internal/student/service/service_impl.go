package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("student.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateStudentRequest) (domain.Student, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Student{}, domain.ErrInvalidName
	}

	now := s.now()
	student := domain.Student{
		ID:        s.genID.Generate(),
		Name:      name,
		Cohort:    strings.TrimSpace(req.Cohort),
		Status:    domain.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, &student); err != nil {
		return domain.Student{}, err
	}

	s.log.Info("student created", zap.String("student_id", student.ID.String()), zap.String("cohort", student.Cohort))
	return student, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Student, error) {
	studentID, err := ParseID(id)
	if err != nil {
		return domain.Student{}, err
	}

	item, err := s.repo.FindByID(ctx, s.db, studentID)
	if err != nil {
		return domain.Student{}, err
	}
	if item == nil {
		return domain.Student{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) List(ctx context.Context, req domain.ListStudentRequest) (domain.ListStudentResponse, error) {
	filter := domain.ListStudentFilter{
		Cohort: strings.TrimSpace(req.Cohort),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = domain.Status(strings.ToLower(status))
		if !filter.Status.Valid() {
			return domain.ListStudentResponse{}, domain.ErrInvalidStatus
		}
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	items, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListStudentResponse{}, err
	}

	items, pageInfo := pagination.Trim(items, page.Limit(), func(student *domain.Student) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: student.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})

	students := make([]domain.Student, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		students = append(students, *item)
	}

	return domain.ListStudentResponse{PageInfo: pageInfo, Students: students}, nil
}

func (s *Service) SetStatus(ctx context.Context, id string, status string) (domain.Student, error) {
	studentID, err := ParseID(id)
	if err != nil {
		return domain.Student{}, err
	}
	next := domain.Status(strings.ToLower(strings.TrimSpace(status)))
	if !next.Valid() {
		return domain.Student{}, domain.ErrInvalidStatus
	}

	affected, err := s.repo.UpdateStatus(ctx, s.db, studentID, next)
	if err != nil {
		return domain.Student{}, err
	}
	if affected == 0 {
		return domain.Student{}, domain.ErrNotFound
	}

	s.log.Info("student status changed", zap.String("student_id", studentID.String()), zap.String("status", string(next)))
	return s.GetByID(ctx, id)
}

func (s *Service) ListEnrolledIDs(ctx context.Context) ([]snowflake.ID, error) {
	return s.repo.ListIDsByStatus(ctx, s.db, domain.StatusActive)
}

func (s *Service) FindMissing(ctx context.Context, ids []snowflake.ID) ([]snowflake.ID, error) {
	found, err := s.repo.ExistingIDs(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	known := make(map[snowflake.ID]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}

	var missing []snowflake.ID
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func (s *Service) Exists(ctx context.Context, id snowflake.ID) (bool, error) {
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	return item != nil, nil
}

func (s *Service) Require(ctx context.Context, id snowflake.ID) error {
	ok, err := s.Exists(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (s *Service) now() time.Time {
	if s.clock == nil {
		return time.Now().UTC()
	}
	return s.clock.Now()
}

// ParseID parses a student identifier from its decimal string form.
func ParseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
