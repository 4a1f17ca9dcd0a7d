package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/events"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/tuitionledger/internal/ledger/service"
	obslogger "github.com/smallbiznis/tuitionledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tuitionledger/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/studentlock"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxReferenceLength = 128

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          paymentdomain.Repository
	ChargeRepo    invoicedomain.Repository
	Students      studentdomain.Service
	LedgerSvc     ledgerdomain.Service
	Guard         *studentlock.Guard
	Publisher     events.Publisher          `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	LedgerMetrics *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          paymentdomain.Repository
	chargeRepo    invoicedomain.Repository
	students      studentdomain.Service
	ledgerSvc     ledgerdomain.Service
	guard         *studentlock.Guard
	publisher     events.Publisher
	obsMetrics    *obsmetrics.Metrics
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func NewService(p Params) paymentdomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NewNoop()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("payment.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		repo:          p.Repo,
		chargeRepo:    p.ChargeRepo,
		students:      p.Students,
		ledgerSvc:     p.LedgerSvc,
		guard:         p.Guard,
		publisher:     publisher,
		obsMetrics:    p.ObsMetrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

// RecordPayment stores the payment, settles the student's open charges in
// FIFO order and refreshes the balance of the month the payment is dated in,
// all under the student's lock in one transaction.
func (s *Service) RecordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResponse, error) {
	start := time.Now()
	resp, err := s.recordPayment(ctx, req)
	s.ledgerMetrics.ObserveJob(obsmetrics.JobRecordPayment, time.Since(start), err)
	return resp, err
}

func (s *Service) recordPayment(ctx context.Context, req paymentdomain.RecordPaymentRequest) (paymentdomain.RecordPaymentResponse, error) {
	payment, err := s.buildPayment(req)
	if err != nil {
		return paymentdomain.RecordPaymentResponse{}, err
	}
	log := obslogger.WithStudent(obslogger.WithContext(ctx, s.log), payment.StudentID.String())
	// students are never deleted, so checking before the lock is enough
	if err := s.students.Require(ctx, payment.StudentID); err != nil {
		return paymentdomain.RecordPaymentResponse{}, err
	}

	var resp paymentdomain.RecordPaymentResponse
	err = s.guard.WithStudents(ctx, []snowflake.ID{payment.StudentID}, func(tx *gorm.DB) error {
		if payment.Reference != nil {
			existing, err := s.repo.FindByReference(ctx, tx, payment.StudentID, *payment.Reference)
			if err != nil {
				return err
			}
			if existing != nil {
				resp = paymentdomain.RecordPaymentResponse{
					Payment:          *existing,
					SettledChargeIDs: []string{},
					Replayed:         true,
				}
				return nil
			}
		}

		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			return err
		}

		open, err := s.chargeRepo.ListOpenForUpdate(ctx, tx, payment.StudentID)
		if err != nil {
			return err
		}
		settled, remaining := Settle(open, payment.Amount)

		affected, err := s.chargeRepo.MarkSettled(ctx, tx, settled)
		if err != nil {
			return err
		}
		if affected != int64(len(settled)) {
			return fmt.Errorf("settle charges: expected %d rows, updated %d", len(settled), affected)
		}

		if err := s.ledgerSvc.RefreshAfterWrite(ctx, tx, payment.StudentID, period.Of(payment.PaidOn), ledgerservice.TriggerPayment); err != nil {
			return err
		}

		ids := make([]string, 0, len(settled))
		for _, id := range settled {
			ids = append(ids, id.String())
		}
		resp = paymentdomain.RecordPaymentResponse{
			Payment:          payment,
			SettledChargeIDs: ids,
			Remaining:        remaining,
		}
		return nil
	})
	if err != nil {
		if payment.Reference != nil && dbpkg.IsDuplicateKeyErr(err) {
			return paymentdomain.RecordPaymentResponse{}, paymentdomain.ErrDuplicateReference
		}
		return paymentdomain.RecordPaymentResponse{}, err
	}

	if resp.Replayed {
		log.Info("payment replayed", zap.String("payment_id", resp.Payment.ID.String()))
		return resp, nil
	}

	s.obsMetrics.RecordPayment(ctx, string(payment.Method), payment.Amount, len(resp.SettledChargeIDs))
	log.Info("payment recorded",
		zap.String("payment_id", payment.ID.String()),
		zap.Int64("amount", payment.Amount),
		zap.String("paid_on", payment.PaidOn.Format(paymentdomain.DateLayout)),
		zap.Int("settled", len(resp.SettledChargeIDs)),
		zap.Int64("remaining", resp.Remaining),
	)

	events.PublishAsync(s.publisher, s.log, events.RoutingPaymentRecorded, events.PaymentRecorded{
		PaymentID:        payment.ID.String(),
		StudentID:        payment.StudentID.String(),
		Amount:           payment.Amount,
		Method:           string(payment.Method),
		PaidOn:           payment.PaidOn.Format(paymentdomain.DateLayout),
		SettledChargeIDs: resp.SettledChargeIDs,
		Remaining:        resp.Remaining,
	})

	return resp, nil
}

func (s *Service) buildPayment(req paymentdomain.RecordPaymentRequest) (paymentdomain.Payment, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil || studentID <= 0 {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidStudent
	}
	if req.Amount <= 0 {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidAmount
	}
	paidOn, err := ParsePaidOn(req.PaidOn)
	if err != nil {
		return paymentdomain.Payment{}, err
	}
	method := paymentdomain.Method(strings.ToLower(strings.TrimSpace(req.Method)))
	if !method.Valid() {
		return paymentdomain.Payment{}, paymentdomain.ErrInvalidMethod
	}

	var reference *string
	if ref := strings.TrimSpace(req.Reference); ref != "" {
		if len(ref) > maxReferenceLength {
			return paymentdomain.Payment{}, paymentdomain.ErrInvalidReference
		}
		reference = &ref
	}

	return paymentdomain.Payment{
		ID:        s.genID.Generate(),
		StudentID: studentID,
		PaidOn:    paidOn,
		Amount:    req.Amount,
		Method:    method,
		Reference: reference,
		CreatedAt: s.clock.Now(),
	}, nil
}

func (s *Service) ListPayments(ctx context.Context, req paymentdomain.ListPaymentsRequest) ([]paymentdomain.Payment, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil || studentID <= 0 {
		return nil, paymentdomain.ErrInvalidStudent
	}

	filter := paymentdomain.ListPaymentFilter{StudentID: studentID}
	if strings.TrimSpace(req.Period) != "" {
		p, err := period.Parse(req.Period)
		if err != nil {
			return nil, err
		}
		from, to := p.Start(), p.End()
		filter.From = &from
		filter.To = &to
	}

	if err := s.students.Require(ctx, studentID); err != nil {
		return nil, err
	}

	payments, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []paymentdomain.Payment{}
	}
	return payments, nil
}

// ParsePaidOn accepts a calendar date or an RFC 3339 timestamp and truncates
// it to midnight UTC.
func ParsePaidOn(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, paymentdomain.ErrInvalidDate
	}
	if t, err := time.Parse(paymentdomain.DateLayout, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, paymentdomain.ErrInvalidDate
	}
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
