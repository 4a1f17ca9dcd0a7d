package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/config"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	reportdomain "github.com/smallbiznis/tuitionledger/internal/report/domain"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const defaultRecentPayments = 10

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	recentLimit int
}

func NewService(p Params) reportdomain.Service {
	limit := p.Config.RecentPaymentsLimit
	if limit <= 0 {
		limit = defaultRecentPayments
	}
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("report.service"),
		recentLimit: limit,
	}
}

func (s *Service) GetDashboard(ctx context.Context, value string) (reportdomain.Dashboard, error) {
	p, err := period.Parse(value)
	if err != nil {
		return reportdomain.Dashboard{}, err
	}

	out := reportdomain.Dashboard{Period: p.String()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		out.Receivable, err = s.summary(gctx, p, "balance > 0")
		return err
	})
	g.Go(func() error {
		var err error
		out.Overpaid, err = s.summary(gctx, p, "balance < 0")
		return err
	})
	g.Go(func() error {
		var err error
		out.ItemSales, err = s.itemSales(gctx, p)
		return err
	})
	g.Go(func() error {
		var err error
		out.RecentPayments, err = s.recentPayments(gctx, p)
		return err
	})
	if err := g.Wait(); err != nil {
		return reportdomain.Dashboard{}, err
	}
	return out, nil
}

func (s *Service) GetItemSalesReport(ctx context.Context, value string) (reportdomain.ItemSalesReport, error) {
	p, err := period.Parse(value)
	if err != nil {
		return reportdomain.ItemSalesReport{}, err
	}
	items, err := s.itemSales(ctx, p)
	if err != nil {
		return reportdomain.ItemSalesReport{}, err
	}

	var total int64
	for _, item := range items {
		total += item.Amount
	}
	return reportdomain.ItemSalesReport{Period: p.String(), Items: items, Total: total}, nil
}

func (s *Service) ListBalances(ctx context.Context, req reportdomain.ListBalancesRequest) (reportdomain.ListBalancesResponse, error) {
	p, err := period.Parse(req.Period)
	if err != nil {
		return reportdomain.ListBalancesResponse{}, err
	}
	filter, err := parseFilter(req.Filter)
	if err != nil {
		return reportdomain.ListBalancesResponse{}, err
	}

	var after snowflake.ID
	if req.PageToken != "" {
		cursor, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return reportdomain.ListBalancesResponse{}, err
		}
		after, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return reportdomain.ListBalancesResponse{}, pagination.ErrInvalidPageToken
		}
	}

	page := pagination.Pagination{PageToken: req.PageToken, PageSize: req.PageSize}
	rows, err := s.balances(ctx, p, filter, strings.TrimSpace(req.Cohort), after, page.Limit()+1)
	if err != nil {
		return reportdomain.ListBalancesResponse{}, err
	}

	rows, info := pagination.Trim(rows, page.Limit(), func(row reportdomain.BalanceRow) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: row.StudentID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	return reportdomain.ListBalancesResponse{PageInfo: info, Balances: rows}, nil
}

func parseFilter(value string) (reportdomain.BalanceFilter, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return reportdomain.BalanceFilterAll, nil
	}
	filter := reportdomain.BalanceFilter(value)
	if !filter.Valid() {
		return "", reportdomain.ErrInvalidFilter
	}
	return filter, nil
}

func (s *Service) summary(ctx context.Context, p period.Period, condition string) (reportdomain.Summary, error) {
	var out reportdomain.Summary
	err := s.db.WithContext(ctx).
		Table("monthly_balances").
		Select("COUNT(*) AS count, COALESCE(SUM(balance), 0) AS total").
		Where("period = ?", p).
		Where(condition).
		Scan(&out).Error
	return out, err
}

func (s *Service) itemSales(ctx context.Context, p period.Period) ([]reportdomain.ItemSale, error) {
	var items []reportdomain.ItemSale
	err := s.db.WithContext(ctx).Raw(`
		SELECT ci.id AS catalog_item_id,
		       ci.code AS item_code,
		       ci.name AS item_name,
		       ci.display_order AS display_order,
		       COUNT(c.id) AS charge_count,
		       COALESCE(SUM(c.amount), 0) AS amount
		FROM charges c
		JOIN catalog_items ci ON ci.id = c.catalog_item_id
		WHERE c.billing_period = ? AND c.status = ?
		GROUP BY ci.id, ci.code, ci.name, ci.display_order
		ORDER BY ci.display_order ASC, ci.id ASC`,
		p,
		invoicedomain.ChargeStatusSettled,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []reportdomain.ItemSale{}
	}
	return items, nil
}

func (s *Service) recentPayments(ctx context.Context, p period.Period) ([]reportdomain.RecentPayment, error) {
	var payments []reportdomain.RecentPayment
	err := s.db.WithContext(ctx).Raw(`
		SELECT p.id, p.student_id, s.name AS student_name, p.paid_on, p.amount, p.method
		FROM payments p
		JOIN students s ON s.id = p.student_id
		WHERE p.paid_on >= ? AND p.paid_on < ?
		ORDER BY p.paid_on DESC, p.id DESC
		LIMIT ?`,
		p.Start(),
		p.End(),
		s.recentLimit,
	).Scan(&payments).Error
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []reportdomain.RecentPayment{}
	}
	return payments, nil
}

// balances lists rows ordered by student id. limit <= 0 returns every row.
func (s *Service) balances(ctx context.Context, p period.Period, filter reportdomain.BalanceFilter, cohort string, after snowflake.ID, limit int) ([]reportdomain.BalanceRow, error) {
	stmt := s.db.WithContext(ctx).
		Table("monthly_balances AS mb").
		Select("mb.student_id, mb.period, mb.previous_balance, mb.charges, mb.payments, mb.balance, s.name AS student_name, s.cohort").
		Joins("JOIN students s ON s.id = mb.student_id").
		Where("mb.period = ?", p)

	switch filter {
	case reportdomain.BalanceFilterReceivable:
		stmt = stmt.Where("mb.balance > 0")
	case reportdomain.BalanceFilterOverpaid:
		stmt = stmt.Where("mb.balance < 0")
	}
	if cohort != "" {
		stmt = stmt.Where("s.cohort = ?", cohort)
	}
	if after > 0 {
		stmt = stmt.Where("mb.student_id > ?", after)
	}
	stmt = stmt.Order("mb.student_id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}

	var rows []reportdomain.BalanceRow
	if err := stmt.Scan(&rows).Error; err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []reportdomain.BalanceRow{}
	}
	return rows, nil
}
