package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/config"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/tuitionledger/internal/observability/metrics"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/studentlock"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	TriggerManual  = "manual"
	TriggerCharge  = "charge"
	TriggerPayment = "payment"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Repo          ledgerdomain.Repository
	Students      studentdomain.Service
	Guard         *studentlock.Guard
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	LedgerMetrics *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          ledgerdomain.Repository
	students      studentdomain.Service
	guard         *studentlock.Guard
	cascade       bool
	obsMetrics    *obsmetrics.Metrics
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("ledger.service"),
		repo:          p.Repo,
		students:      p.Students,
		guard:         p.Guard,
		cascade:       p.Config.BalanceCascadeForward,
		obsMetrics:    p.ObsMetrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

func (s *Service) Recalculate(ctx context.Context, req ledgerdomain.RecalculateRequest) (ledgerdomain.MonthlyBalance, error) {
	studentID, p, err := s.parse(req.StudentID, req.Period)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}

	if err := s.students.Require(ctx, studentID); err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}

	start := time.Now()
	var out ledgerdomain.MonthlyBalance
	err = s.guard.WithStudents(ctx, []snowflake.ID{studentID}, func(tx *gorm.DB) error {
		balance, err := s.RecalculateWithin(ctx, tx, studentID, p)
		if err != nil {
			return err
		}
		out = balance
		return nil
	})
	s.ledgerMetrics.ObserveJob(obsmetrics.JobRecalculate, time.Since(start), err)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}

	s.obsMetrics.RecordBalanceRecalculation(ctx, TriggerManual, 1)
	return out, nil
}

func (s *Service) RecalculateForward(ctx context.Context, req ledgerdomain.RecalculateForwardRequest) ([]ledgerdomain.MonthlyBalance, error) {
	studentID, from, err := s.parse(req.StudentID, req.From)
	if err != nil {
		return nil, err
	}

	if err := s.students.Require(ctx, studentID); err != nil {
		return nil, err
	}

	start := time.Now()
	var out []ledgerdomain.MonthlyBalance
	err = s.guard.WithStudents(ctx, []snowflake.ID{studentID}, func(tx *gorm.DB) error {
		balances, err := s.RecalculateForwardWithin(ctx, tx, studentID, from)
		if err != nil {
			return err
		}
		out = balances
		return nil
	})
	s.ledgerMetrics.ObserveJob(obsmetrics.JobRebuild, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordBalanceRecalculation(ctx, TriggerManual, len(out))
	s.log.Info("balances rebuilt",
		zap.String("student_id", studentID.String()),
		zap.String("from", from.String()),
		zap.Int("periods", len(out)),
	)
	return out, nil
}

func (s *Service) GetBalance(ctx context.Context, req ledgerdomain.GetBalanceRequest) (ledgerdomain.MonthlyBalance, error) {
	studentID, p, err := s.parse(req.StudentID, req.Period)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}
	if err := s.students.Require(ctx, studentID); err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}

	balance, err := s.repo.Find(ctx, s.db, studentID, p)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}
	if balance == nil {
		return ledgerdomain.MonthlyBalance{}, ledgerdomain.ErrBalanceNotFound
	}
	return *balance, nil
}

func (s *Service) RecalculateWithin(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, p period.Period) (ledgerdomain.MonthlyBalance, error) {
	if !p.Valid() {
		return ledgerdomain.MonthlyBalance{}, period.ErrInvalidPeriod
	}

	previous := int64(0)
	prev, err := s.repo.Find(ctx, tx, studentID, p.Prev())
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}
	if prev != nil {
		previous = prev.Balance
	}

	charges, err := s.repo.SumCharges(ctx, tx, studentID, p)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}
	payments, err := s.repo.SumPayments(ctx, tx, studentID, p)
	if err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}

	balance := ledgerdomain.MonthlyBalance{
		StudentID:       studentID,
		Period:          p,
		PreviousBalance: previous,
		Charges:         charges,
		Payments:        payments,
	}
	balance.Compute()

	if err := s.repo.Upsert(ctx, tx, &balance); err != nil {
		return ledgerdomain.MonthlyBalance{}, err
	}
	return balance, nil
}

func (s *Service) RecalculateForwardWithin(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, from period.Period) ([]ledgerdomain.MonthlyBalance, error) {
	if !from.Valid() {
		return nil, period.ErrInvalidPeriod
	}

	latest, err := s.repo.LatestPeriod(ctx, tx, studentID)
	if err != nil {
		return nil, err
	}
	if latest.IsZero() || latest.Before(from) {
		latest = from
	}

	var out []ledgerdomain.MonthlyBalance
	for p := from; !latest.Before(p); p = p.Next() {
		balance, err := s.RecalculateWithin(ctx, tx, studentID, p)
		if err != nil {
			return nil, err
		}
		out = append(out, balance)
	}
	return out, nil
}

func (s *Service) RefreshAfterWrite(ctx context.Context, tx *gorm.DB, studentID snowflake.ID, p period.Period, trigger string) error {
	if s.cascade {
		balances, err := s.RecalculateForwardWithin(ctx, tx, studentID, p)
		if err != nil {
			return err
		}
		s.obsMetrics.RecordBalanceRecalculation(ctx, trigger, len(balances))
		return nil
	}

	if _, err := s.RecalculateWithin(ctx, tx, studentID, p); err != nil {
		return err
	}
	s.obsMetrics.RecordBalanceRecalculation(ctx, trigger, 1)
	return nil
}

func (s *Service) parse(studentValue, periodValue string) (snowflake.ID, period.Period, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(studentValue))
	if err != nil || studentID <= 0 {
		return 0, period.Period{}, ledgerdomain.ErrInvalidStudent
	}
	p, err := period.Parse(periodValue)
	if err != nil {
		return 0, period.Period{}, err
	}
	return studentID, p, nil
}
