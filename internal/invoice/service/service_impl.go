package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/smallbiznis/tuitionledger/internal/events"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/tuitionledger/internal/ledger/service"
	obslogger "github.com/smallbiznis/tuitionledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tuitionledger/internal/observability/metrics"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/studentlock"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Repo          invoicedomain.Repository
	Students      studentdomain.Service
	CatalogRepo   catalogdomain.Repository
	Billing       *config.BillingConfigHolder
	LedgerSvc     ledgerdomain.Service
	Guard         *studentlock.Guard
	Publisher     events.Publisher          `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics       `optional:"true"`
	LedgerMetrics *obsmetrics.LedgerMetrics `optional:"true"`
}

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID         *snowflake.Node
	clock         clock.Clock
	repo          invoicedomain.Repository
	students      studentdomain.Service
	catalogRepo   catalogdomain.Repository
	billing       *config.BillingConfigHolder
	ledgerSvc     ledgerdomain.Service
	guard         *studentlock.Guard
	publisher     events.Publisher
	obsMetrics    *obsmetrics.Metrics
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	publisher := p.Publisher
	if publisher == nil {
		publisher = events.NewNoop()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,

		clock:         p.Clock,
		repo:          p.Repo,
		students:      p.Students,
		catalogRepo:   p.CatalogRepo,
		billing:       p.Billing,
		ledgerSvc:     p.LedgerSvc,
		guard:         p.Guard,
		publisher:     publisher,
		obsMetrics:    p.ObsMetrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

// GenerateCharges bills every selected student once per billable catalog item
// for the period, skipping items exempt in that month, and refreshes each
// student's balance for the period. The whole run is one transaction.
func (s *Service) GenerateCharges(ctx context.Context, req invoicedomain.GenerateChargesRequest) (invoicedomain.GenerateChargesResponse, error) {
	start := time.Now()
	resp, err := s.generateCharges(ctx, req)
	s.ledgerMetrics.ObserveJob(obsmetrics.JobGenerateCharges, time.Since(start), err)
	return resp, err
}

func (s *Service) generateCharges(ctx context.Context, req invoicedomain.GenerateChargesRequest) (invoicedomain.GenerateChargesResponse, error) {
	p, err := period.Parse(req.Period)
	if err != nil {
		return invoicedomain.GenerateChargesResponse{}, err
	}

	studentIDs, err := s.resolveStudents(ctx, req)
	if err != nil {
		return invoicedomain.GenerateChargesResponse{}, err
	}

	items, err := s.resolveItems(ctx, p)
	if err != nil {
		return invoicedomain.GenerateChargesResponse{}, err
	}

	resp := invoicedomain.GenerateChargesResponse{
		Period:       p.String(),
		StudentCount: len(studentIDs),
		ItemCount:    len(items),
	}
	if len(studentIDs) == 0 || len(items) == 0 {
		s.log.Info("nothing to bill",
			zap.String("period", p.String()),
			zap.Int("students", len(studentIDs)),
			zap.Int("items", len(items)),
		)
		return resp, nil
	}

	var created []invoicedomain.Charge
	err = s.guard.WithStudents(ctx, studentIDs, func(tx *gorm.DB) error {
		billed := map[invoicedomain.BilledPair]struct{}{}
		if req.SkipExisting {
			pairs, err := s.repo.ExistingPairs(ctx, tx, studentIDs, p)
			if err != nil {
				return err
			}
			for _, pair := range pairs {
				billed[pair] = struct{}{}
			}
		}

		now := s.clock.Now()
		charges := make([]invoicedomain.Charge, 0, len(studentIDs)*len(items))
		for _, studentID := range studentIDs {
			for _, item := range items {
				if _, ok := billed[invoicedomain.BilledPair{StudentID: studentID, CatalogItemID: item.ID}]; ok {
					resp.SkippedCount++
					continue
				}
				charges = append(charges, invoicedomain.Charge{
					ID:            s.genID.Generate(),
					StudentID:     studentID,
					CatalogItemID: item.ID,
					BillingPeriod: p,
					Amount:        *item.UnitPrice,
					Status:        invoicedomain.ChargeStatusOpen,
					CreatedAt:     now,
				})
			}
		}

		if err := s.repo.BatchInsert(ctx, tx, charges); err != nil {
			if dbpkg.IsDuplicateKeyErr(err) {
				return invoicedomain.ErrDuplicateCharge
			}
			return err
		}

		for _, studentID := range studentIDs {
			if err := s.ledgerSvc.RefreshAfterWrite(ctx, tx, studentID, p, ledgerservice.TriggerCharge); err != nil {
				return fmt.Errorf("recalculate student %s: %w", studentID, err)
			}
		}

		created = charges
		return nil
	})
	if err != nil {
		return invoicedomain.GenerateChargesResponse{}, err
	}

	resp.CreatedCount = len(created)
	s.recordGenerated(ctx, items, created)

	obslogger.WithContext(ctx, s.log).Info("charges generated",
		zap.String("period", p.String()),
		zap.Int("created", resp.CreatedCount),
		zap.Int("skipped", resp.SkippedCount),
		zap.Int("students", resp.StudentCount),
	)

	ids := make([]string, 0, len(studentIDs))
	for _, id := range studentIDs {
		ids = append(ids, id.String())
	}
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, item.Code)
	}
	events.PublishAsync(s.publisher, s.log, events.RoutingChargesGenerated, events.ChargesGenerated{
		Period:       p.String(),
		ItemCodes:    codes,
		CreatedCount: resp.CreatedCount,
		SkippedCount: resp.SkippedCount,
		StudentIDs:   ids,
	})

	return resp, nil
}

func (s *Service) resolveStudents(ctx context.Context, req invoicedomain.GenerateChargesRequest) ([]snowflake.ID, error) {
	if req.All {
		if len(req.StudentIDs) > 0 {
			return nil, invoicedomain.ErrInvalidStudentSelector
		}
		return s.students.ListEnrolledIDs(ctx)
	}
	if len(req.StudentIDs) == 0 {
		return nil, invoicedomain.ErrInvalidStudentSelector
	}

	seen := make(map[snowflake.ID]struct{}, len(req.StudentIDs))
	ids := make([]snowflake.ID, 0, len(req.StudentIDs))
	for _, raw := range req.StudentIDs {
		id, err := snowflake.ParseString(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%w: %q", invoicedomain.ErrInvalidStudent, raw)
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	missing, err := s.students.FindMissing(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for _, id := range missing {
			names = append(names, id.String())
		}
		return nil, fmt.Errorf("%w: %s", invoicedomain.ErrUnknownStudent, strings.Join(names, ","))
	}
	return ids, nil
}

// resolveItems returns the billable catalog minus the items exempt in p.
func (s *Service) resolveItems(ctx context.Context, p period.Period) ([]catalogdomain.Item, error) {
	billable, err := s.catalogRepo.ListBillable(ctx, s.db)
	if err != nil {
		return nil, err
	}

	exempt := s.billing.ExemptItemCodes(p)
	items := make([]catalogdomain.Item, 0, len(billable))
	for _, item := range billable {
		if item.UnitPrice == nil {
			continue
		}
		if _, ok := exempt[strings.ToLower(item.Code)]; ok {
			s.log.Debug("item exempt for period", zap.String("code", item.Code), zap.String("period", p.String()))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Service) recordGenerated(ctx context.Context, items []catalogdomain.Item, charges []invoicedomain.Charge) {
	if s.obsMetrics == nil {
		return
	}
	codes := make(map[snowflake.ID]string, len(items))
	for _, item := range items {
		codes[item.ID] = item.Code
	}
	counts := map[string]int{}
	for _, charge := range charges {
		counts[codes[charge.CatalogItemID]]++
	}
	for code, count := range counts {
		s.obsMetrics.RecordChargesGenerated(ctx, code, count)
	}
}

func (s *Service) ListCharges(ctx context.Context, req invoicedomain.ListChargesRequest) ([]invoicedomain.ChargeView, error) {
	studentID, err := snowflake.ParseString(strings.TrimSpace(req.StudentID))
	if err != nil || studentID <= 0 {
		return nil, invoicedomain.ErrInvalidStudent
	}

	filter := invoicedomain.ListChargeFilter{StudentID: studentID}
	if strings.TrimSpace(req.Period) != "" {
		p, err := period.Parse(req.Period)
		if err != nil {
			return nil, err
		}
		filter.Period = &p
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		filter.Status = invoicedomain.ChargeStatus(strings.ToUpper(status))
		if !filter.Status.Valid() {
			return nil, invoicedomain.ErrInvalidStatus
		}
	}

	if err := s.students.Require(ctx, studentID); err != nil {
		return nil, err
	}

	charges, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}
	if charges == nil {
		charges = []invoicedomain.ChargeView{}
	}
	return charges, nil
}
