package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	"github.com/smallbiznis/tuitionledger/pkg/db/pagination"
)

type BalanceFilter string

const (
	BalanceFilterAll        BalanceFilter = "all"
	BalanceFilterReceivable BalanceFilter = "receivable"
	BalanceFilterOverpaid   BalanceFilter = "overpaid"
)

func (f BalanceFilter) Valid() bool {
	switch f {
	case BalanceFilterAll, BalanceFilterReceivable, BalanceFilterOverpaid:
		return true
	default:
		return false
	}
}

// Summary counts balance rows on one side of zero and sums their balances.
type Summary struct {
	Count int64 `json:"count"`
	Total int64 `json:"total"`
}

// ItemSale is the money collected for one catalog item in a period: only
// SETTLED charges are counted.
type ItemSale struct {
	CatalogItemID snowflake.ID `json:"catalog_item_id"`
	ItemCode      string       `json:"item_code"`
	ItemName      string       `json:"item_name"`
	DisplayOrder  int          `json:"display_order"`
	ChargeCount   int64        `json:"charge_count"`
	Amount        int64        `json:"amount"`
}

type ItemSalesReport struct {
	Period string     `json:"period"`
	Items  []ItemSale `json:"items"`
	Total  int64      `json:"total"`
}

type RecentPayment struct {
	ID          snowflake.ID `json:"id"`
	StudentID   snowflake.ID `json:"student_id"`
	StudentName string       `json:"student_name"`
	PaidOn      time.Time    `json:"paid_on"`
	Amount      int64        `json:"amount"`
	Method      string       `json:"method"`
}

type Dashboard struct {
	Period         string          `json:"period"`
	Receivable     Summary         `json:"receivable"`
	Overpaid       Summary         `json:"overpaid"`
	ItemSales      []ItemSale      `json:"item_sales"`
	RecentPayments []RecentPayment `json:"recent_payments"`
}

// BalanceRow is a monthly balance joined with the student's directory entry.
type BalanceRow struct {
	ledgerdomain.MonthlyBalance
	StudentName string `json:"student_name"`
	Cohort      string `json:"cohort"`
}

type ListBalancesResponse struct {
	pagination.PageInfo
	Balances []BalanceRow `json:"balances"`
}
