package domain

import (
	"context"
	"errors"
)

type ListBalancesRequest struct {
	Period    string
	Filter    string
	Cohort    string
	PageToken string
	PageSize  int
}

// Service exposes read-only views over balances, charges and payments.
// Results are point-in-time snapshots and may interleave with writers.
type Service interface {
	GetDashboard(ctx context.Context, period string) (Dashboard, error)
	GetItemSalesReport(ctx context.Context, period string) (ItemSalesReport, error)
	ListBalances(ctx context.Context, req ListBalancesRequest) (ListBalancesResponse, error)
	// ExportItemSales renders the period's summaries, item sales and balances
	// as an XLSX workbook.
	ExportItemSales(ctx context.Context, period string) ([]byte, error)
}

var ErrInvalidFilter = errors.New("invalid_balance_filter")
