package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	"github.com/smallbiznis/tuitionledger/internal/migration"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
	reportdomain "github.com/smallbiznis/tuitionledger/internal/report/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Bring the database schema up to date",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWithApp(cmd, func(ctx context.Context) error {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}, migration.Module)
	},
}

var generateChargesCmd = &cobra.Command{
	Use:   "generate-charges",
	Short: "Bill every billable catalog item to students for a month",
	Example: `  # Bill all active students for April 2024
  tuitionctl generate-charges --period 2024-04

  # Bill two students, skipping items already billed
  tuitionctl generate-charges --period 2024-04 --students 1790,1791 --skip-existing`,
	RunE: runGenerateCharges,
}

var recordPaymentCmd = &cobra.Command{
	Use:   "record-payment",
	Short: "Record a payment and settle open charges oldest first",
	RunE:  runRecordPayment,
}

var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Rebuild one monthly balance for a student",
	RunE:  runRecalculate,
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild a student's balances from a month onwards",
	RunE:  runRebuild,
}

var exportSalesCmd = &cobra.Command{
	Use:   "export-sales",
	Short: "Write the item sales workbook for a month",
	RunE:  runExportSales,
}

func init() {
	rootCmd.AddCommand(migrateCmd, generateChargesCmd, recordPaymentCmd, recalculateCmd, rebuildCmd, exportSalesCmd)

	generateChargesCmd.Flags().String("period", "", "Billing period (YYYY-MM)")
	generateChargesCmd.Flags().String("students", "all", `"all" or a comma separated list of student ids`)
	generateChargesCmd.Flags().Bool("skip-existing", false, "Skip student/item pairs already billed for the period")
	_ = generateChargesCmd.MarkFlagRequired("period")

	recordPaymentCmd.Flags().String("student", "", "Student id")
	recordPaymentCmd.Flags().String("paid-on", "", "Payment date (YYYY-MM-DD)")
	recordPaymentCmd.Flags().Int64("amount", 0, "Amount in minor units")
	recordPaymentCmd.Flags().String("method", "cash", "Payment method")
	recordPaymentCmd.Flags().String("reference", "", "External reference, used for idempotent retries")
	_ = recordPaymentCmd.MarkFlagRequired("student")
	_ = recordPaymentCmd.MarkFlagRequired("paid-on")
	_ = recordPaymentCmd.MarkFlagRequired("amount")

	recalculateCmd.Flags().String("student", "", "Student id")
	recalculateCmd.Flags().String("period", "", "Balance period (YYYY-MM)")
	_ = recalculateCmd.MarkFlagRequired("student")
	_ = recalculateCmd.MarkFlagRequired("period")

	rebuildCmd.Flags().String("student", "", "Student id")
	rebuildCmd.Flags().String("from", "", "First period to rebuild (YYYY-MM)")
	_ = rebuildCmd.MarkFlagRequired("student")
	_ = rebuildCmd.MarkFlagRequired("from")

	exportSalesCmd.Flags().String("period", "", "Report period (YYYY-MM)")
	exportSalesCmd.Flags().StringP("out", "o", "", "Output file (default item-sales-<period>.xlsx)")
	_ = exportSalesCmd.MarkFlagRequired("period")
}

func runGenerateCharges(cmd *cobra.Command, args []string) error {
	p, _ := cmd.Flags().GetString("period")
	students, _ := cmd.Flags().GetString("students")
	skipExisting, _ := cmd.Flags().GetBool("skip-existing")

	req := invoicedomain.GenerateChargesRequest{Period: p, SkipExisting: skipExisting}
	if strings.EqualFold(strings.TrimSpace(students), "all") {
		req.All = true
	} else {
		req.StudentIDs = splitIDs(students)
	}

	var svc invoicedomain.Service
	return runWithApp(cmd, func(ctx context.Context) error {
		resp, err := svc.GenerateCharges(ctx, req)
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	}, fx.Populate(&svc))
}

func runRecordPayment(cmd *cobra.Command, args []string) error {
	studentID, _ := cmd.Flags().GetString("student")
	paidOn, _ := cmd.Flags().GetString("paid-on")
	amount, _ := cmd.Flags().GetInt64("amount")
	method, _ := cmd.Flags().GetString("method")
	reference, _ := cmd.Flags().GetString("reference")

	var svc paymentdomain.Service
	return runWithApp(cmd, func(ctx context.Context) error {
		resp, err := svc.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
			StudentID: studentID,
			PaidOn:    paidOn,
			Amount:    amount,
			Method:    method,
			Reference: reference,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	}, fx.Populate(&svc))
}

func runRecalculate(cmd *cobra.Command, args []string) error {
	studentID, _ := cmd.Flags().GetString("student")
	p, _ := cmd.Flags().GetString("period")

	var svc ledgerdomain.Service
	return runWithApp(cmd, func(ctx context.Context) error {
		resp, err := svc.Recalculate(ctx, ledgerdomain.RecalculateRequest{StudentID: studentID, Period: p})
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	}, fx.Populate(&svc))
}

func runRebuild(cmd *cobra.Command, args []string) error {
	studentID, _ := cmd.Flags().GetString("student")
	from, _ := cmd.Flags().GetString("from")

	var svc ledgerdomain.Service
	return runWithApp(cmd, func(ctx context.Context) error {
		resp, err := svc.RecalculateForward(ctx, ledgerdomain.RecalculateForwardRequest{StudentID: studentID, From: from})
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	}, fx.Populate(&svc))
}

func runExportSales(cmd *cobra.Command, args []string) error {
	p, _ := cmd.Flags().GetString("period")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = fmt.Sprintf("item-sales-%s.xlsx", p)
	}

	var svc reportdomain.Service
	return runWithApp(cmd, func(ctx context.Context) error {
		data, err := svc.ExportItemSales(ctx, p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(out, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", out, len(data))
		return nil
	}, fx.Populate(&svc))
}

func splitIDs(value string) []string {
	parts := strings.Split(value, ",")
	ids := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			ids = append(ids, part)
		}
	}
	return ids
}
