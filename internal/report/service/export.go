package service

import (
	"bytes"
	"context"
	"fmt"

	reportdomain "github.com/smallbiznis/tuitionledger/internal/report/domain"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	summarySheet   = "summary"
	itemSalesSheet = "item_sales"
	balancesSheet  = "balances"
)

func (s *Service) ExportItemSales(ctx context.Context, value string) ([]byte, error) {
	p, err := period.Parse(value)
	if err != nil {
		return nil, err
	}

	var (
		receivable reportdomain.Summary
		overpaid   reportdomain.Summary
		items      []reportdomain.ItemSale
		balances   []reportdomain.BalanceRow
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		receivable, err = s.summary(gctx, p, "balance > 0")
		return err
	})
	g.Go(func() (err error) {
		overpaid, err = s.summary(gctx, p, "balance < 0")
		return err
	})
	g.Go(func() (err error) {
		items, err = s.itemSales(gctx, p)
		return err
	})
	g.Go(func() (err error) {
		balances, err = s.balances(gctx, p, reportdomain.BalanceFilterAll, "", 0, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out, err := BuildWorkbook(p, receivable, overpaid, items, balances)
	if err != nil {
		return nil, err
	}
	s.log.Info("item sales exported",
		zap.String("period", p.String()),
		zap.Int("items", len(items)),
		zap.Int("balances", len(balances)),
		zap.Int("bytes", len(out)),
	)
	return out, nil
}

// BuildWorkbook renders the period report as XLSX. Student ids are written as
// text so spreadsheet software keeps every digit.
func BuildWorkbook(p period.Period, receivable, overpaid reportdomain.Summary, items []reportdomain.ItemSale, balances []reportdomain.BalanceRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemSalesSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(balancesSheet); err != nil {
		return nil, err
	}

	var total int64
	for _, item := range items {
		total += item.Amount
	}

	_ = f.SetCellValue(summarySheet, "A1", "Tuition Ledger Report")
	_ = f.SetCellValue(summarySheet, "A3", "Period")
	_ = f.SetCellValue(summarySheet, "B3", p.String())
	_ = f.SetCellValue(summarySheet, "A4", "Receivable students")
	_ = f.SetCellValue(summarySheet, "B4", receivable.Count)
	_ = f.SetCellValue(summarySheet, "A5", "Receivable total")
	_ = f.SetCellValue(summarySheet, "B5", receivable.Total)
	_ = f.SetCellValue(summarySheet, "A6", "Overpaid students")
	_ = f.SetCellValue(summarySheet, "B6", overpaid.Count)
	_ = f.SetCellValue(summarySheet, "A7", "Overpaid total")
	_ = f.SetCellValue(summarySheet, "B7", overpaid.Total)
	_ = f.SetCellValue(summarySheet, "A8", "Sales total")
	_ = f.SetCellValue(summarySheet, "B8", total)

	_ = f.SetCellValue(itemSalesSheet, "A1", "Code")
	_ = f.SetCellValue(itemSalesSheet, "B1", "Item")
	_ = f.SetCellValue(itemSalesSheet, "C1", "Settled charges")
	_ = f.SetCellValue(itemSalesSheet, "D1", "Amount")
	for i, item := range items {
		row := i + 2
		_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("A%d", row), item.ItemCode)
		_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("B%d", row), item.ItemName)
		_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("C%d", row), item.ChargeCount)
		_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("D%d", row), item.Amount)
	}
	totalRow := len(items) + 2
	_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("A%d", totalRow), "Total")
	_ = f.SetCellValue(itemSalesSheet, fmt.Sprintf("D%d", totalRow), total)

	_ = f.SetCellValue(balancesSheet, "A1", "Student ID")
	_ = f.SetCellValue(balancesSheet, "B1", "Name")
	_ = f.SetCellValue(balancesSheet, "C1", "Cohort")
	_ = f.SetCellValue(balancesSheet, "D1", "Previous")
	_ = f.SetCellValue(balancesSheet, "E1", "Charges")
	_ = f.SetCellValue(balancesSheet, "F1", "Payments")
	_ = f.SetCellValue(balancesSheet, "G1", "Balance")
	for i, b := range balances {
		row := i + 2
		_ = f.SetCellStr(balancesSheet, fmt.Sprintf("A%d", row), b.StudentID.String())
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("B%d", row), b.StudentName)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("C%d", row), b.Cohort)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("D%d", row), b.PreviousBalance)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("E%d", row), b.Charges)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("F%d", row), b.Payments)
		_ = f.SetCellValue(balancesSheet, fmt.Sprintf("G%d", row), b.Balance)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
