package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/config"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
	"github.com/smallbiznis/tuitionledger/internal/payment/service"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/testenv"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setup bills one student 30,000 of tuition for each period given, with no
// exempt months.
func setup(t *testing.T, periods ...string) (*testenv.Env, studentdomain.Student) {
	t.Helper()
	env := testenv.New(t, testenv.Options{
		Billing: &config.BillingConfig{TuitionItemCode: "tuition"},
	})
	student := env.Student(t, "Aiko", "2024")
	env.Item(t, "tuition", 30000, 1)

	for _, p := range periods {
		_, err := env.Invoices.GenerateCharges(context.Background(), invoicedomain.GenerateChargesRequest{
			Period: p,
			All:    true,
		})
		require.NoError(t, err)
	}
	return env, student
}

func openCount(t *testing.T, env *testenv.Env, studentID string) int {
	t.Helper()
	open, err := env.Invoices.ListCharges(context.Background(), invoicedomain.ListChargesRequest{
		StudentID: studentID,
		Status:    "open",
	})
	require.NoError(t, err)
	return len(open)
}

func TestRecordPaymentSettlesOldestChargesFirst(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01", "2024-02", "2024-03")

	resp, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-03-10",
		Amount:    65000,
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Len(t, resp.SettledChargeIDs, 2)
	assert.Equal(t, int64(5000), resp.Remaining)
	assert.False(t, resp.Replayed)

	open, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{
		StudentID: student.ID.String(),
		Status:    "OPEN",
	})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, period.MustParse("2024-03"), open[0].BillingPeriod)

	march, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-03"})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), march.PreviousBalance)
	assert.Equal(t, int64(30000), march.Charges)
	assert.Equal(t, int64(65000), march.Payments)
	assert.Equal(t, int64(25000), march.Balance)
}

func TestRecordPaymentExactAmount(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01")

	resp, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-01-20",
		Amount:    30000,
		Method:    "bank_transfer",
	})
	require.NoError(t, err)
	assert.Len(t, resp.SettledChargeIDs, 1)
	assert.Zero(t, resp.Remaining)
	assert.Zero(t, openCount(t, env, student.ID.String()))

	jan, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-01"})
	require.NoError(t, err)
	assert.Zero(t, jan.Balance)
}

func TestRecordPaymentTooSmallSettlesNothing(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01")

	resp, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-01-05",
		Amount:    10000,
		Method:    "card",
	})
	require.NoError(t, err)
	assert.Empty(t, resp.SettledChargeIDs)
	assert.Equal(t, int64(10000), resp.Remaining)
	assert.Equal(t, 1, openCount(t, env, student.ID.String()))

	jan, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), jan.Balance)
}

func TestRecordPaymentOverpaymentGoesNegative(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01")

	resp, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-01-31T23:30:00Z",
		Amount:    50000,
		Method:    "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(20000), resp.Remaining)
	assert.Equal(t, "2024-01-31", resp.Payment.PaidOn.Format(paymentdomain.DateLayout))

	jan, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(-20000), jan.Balance)
}

func TestRecordPaymentWithoutChargesCreatesBalanceRow(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t)

	_, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-05-02",
		Amount:    1000,
		Method:    "other",
	})
	require.NoError(t, err)

	may, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-05"})
	require.NoError(t, err)
	assert.Equal(t, int64(-1000), may.Balance)
}

func TestRecordPaymentReplaysReference(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01", "2024-02")

	req := paymentdomain.RecordPaymentRequest{
		StudentID: student.ID.String(),
		PaidOn:    "2024-02-01",
		Amount:    30000,
		Method:    "bank_transfer",
		Reference: "TX-001",
	}
	first, err := env.Payments.RecordPayment(ctx, req)
	require.NoError(t, err)
	require.Len(t, first.SettledChargeIDs, 1)

	second, err := env.Payments.RecordPayment(ctx, req)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Payment.ID, second.Payment.ID)
	assert.Empty(t, second.SettledChargeIDs)
	assert.Equal(t, 1, openCount(t, env, student.ID.String()))

	payments, err := env.Payments.ListPayments(ctx, paymentdomain.ListPaymentsRequest{StudentID: student.ID.String()})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestRecordPaymentValidation(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t)
	sid := student.ID.String()

	tests := []struct {
		name string
		req  paymentdomain.RecordPaymentRequest
		err  error
	}{
		{"bad student", paymentdomain.RecordPaymentRequest{StudentID: "abc", PaidOn: "2024-01-01", Amount: 1, Method: "cash"}, paymentdomain.ErrInvalidStudent},
		{"zero amount", paymentdomain.RecordPaymentRequest{StudentID: sid, PaidOn: "2024-01-01", Amount: 0, Method: "cash"}, paymentdomain.ErrInvalidAmount},
		{"negative amount", paymentdomain.RecordPaymentRequest{StudentID: sid, PaidOn: "2024-01-01", Amount: -5, Method: "cash"}, paymentdomain.ErrInvalidAmount},
		{"bad date", paymentdomain.RecordPaymentRequest{StudentID: sid, PaidOn: "01/02/2024", Amount: 1, Method: "cash"}, paymentdomain.ErrInvalidDate},
		{"missing date", paymentdomain.RecordPaymentRequest{StudentID: sid, Amount: 1, Method: "cash"}, paymentdomain.ErrInvalidDate},
		{"bad method", paymentdomain.RecordPaymentRequest{StudentID: sid, PaidOn: "2024-01-01", Amount: 1, Method: "cheque"}, paymentdomain.ErrInvalidMethod},
		{"unknown student", paymentdomain.RecordPaymentRequest{StudentID: "999", PaidOn: "2024-01-01", Amount: 1, Method: "cash"}, studentdomain.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Payments.RecordPayment(ctx, tt.req)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	payments, err := env.Payments.ListPayments(ctx, paymentdomain.ListPaymentsRequest{StudentID: sid})
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestConcurrentPaymentsForOneStudent(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t, "2024-01", "2024-02")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	settled := make([]int, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
				StudentID: student.ID.String(),
				PaidOn:    "2024-02-10",
				Amount:    30000,
				Method:    "cash",
			})
			errs[i] = err
			settled[i] = len(resp.SettledChargeIDs)
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, 1, settled[0])
	assert.Equal(t, 1, settled[1])
	assert.Zero(t, openCount(t, env, student.ID.String()))

	feb, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-02"})
	require.NoError(t, err)
	assert.Equal(t, int64(60000), feb.Payments)
	assert.Zero(t, feb.Balance)
}

func TestListPaymentsFiltersByPeriod(t *testing.T) {
	ctx := context.Background()
	env, student := setup(t)

	for _, day := range []string{"2024-01-31", "2024-02-01", "2024-02-29", "2024-03-01"} {
		_, err := env.Payments.RecordPayment(ctx, paymentdomain.RecordPaymentRequest{
			StudentID: student.ID.String(),
			PaidOn:    day,
			Amount:    100,
			Method:    "cash",
		})
		require.NoError(t, err)
	}

	feb, err := env.Payments.ListPayments(ctx, paymentdomain.ListPaymentsRequest{StudentID: student.ID.String(), Period: "2024-02"})
	require.NoError(t, err)
	require.Len(t, feb, 2)
	assert.Equal(t, "2024-02-01", feb[0].PaidOn.Format(paymentdomain.DateLayout))
	assert.Equal(t, "2024-02-29", feb[1].PaidOn.Format(paymentdomain.DateLayout))

	_, err = env.Payments.ListPayments(ctx, paymentdomain.ListPaymentsRequest{StudentID: "12345", Period: "2024-02"})
	assert.ErrorIs(t, err, studentdomain.ErrNotFound)

	_, err = env.Payments.ListPayments(ctx, paymentdomain.ListPaymentsRequest{StudentID: student.ID.String(), Period: "2024-13"})
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)
}

func TestParsePaidOn(t *testing.T) {
	got, err := service.ParsePaidOn("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	got, err = service.ParsePaidOn("2024-03-01T01:00:00+09:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = service.ParsePaidOn("2024-02-30")
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidDate)
}
