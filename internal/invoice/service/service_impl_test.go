package service_test

import (
	"context"
	"testing"
	"time"

	catalogdomain "github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	"github.com/smallbiznis/tuitionledger/internal/events"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/testenv"
	"github.com/smallbiznis/tuitionledger/pkg/period"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	ch chan events.ChargesGenerated
}

func (p *capturePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	if evt, ok := payload.(events.ChargesGenerated); ok && routingKey == events.RoutingChargesGenerated {
		p.ch <- evt
	}
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func TestGenerateChargesBillsEveryActiveStudent(t *testing.T) {
	ctx := context.Background()
	publisher := &capturePublisher{ch: make(chan events.ChargesGenerated, 1)}
	env := testenv.New(t, testenv.Options{Publisher: publisher})

	a := env.Student(t, "Aiko", "2024")
	b := env.Student(t, "Ben", "2024")
	withdrawn := env.Student(t, "Chen", "2023")
	_, err := env.Students.SetStatus(ctx, withdrawn.ID.String(), string(studentdomain.StatusWithdrawn))
	require.NoError(t, err)

	env.Item(t, "tuition", 30000, 1)
	env.Item(t, "books", 2500, 2)
	_, err = env.Catalog.CreateItem(ctx, catalogdomain.CreateItemRequest{Name: "Field trip", Code: "trip"})
	require.NoError(t, err)

	resp, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true})
	require.NoError(t, err)
	assert.Equal(t, "2024-04", resp.Period)
	assert.Equal(t, 4, resp.CreatedCount)
	assert.Equal(t, 2, resp.StudentCount)
	assert.Equal(t, 2, resp.ItemCount)

	charges, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: a.ID.String(), Period: "2024-04"})
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, "tuition", charges[0].ItemCode)
	assert.Equal(t, int64(30000), charges[0].Amount)
	assert.Equal(t, invoicedomain.ChargeStatusOpen, charges[0].Status)
	assert.Equal(t, "books", charges[1].ItemCode)

	balance, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: b.ID.String(), Period: "2024-04"})
	require.NoError(t, err)
	assert.Equal(t, int64(32500), balance.Charges)
	assert.Equal(t, int64(32500), balance.Balance)

	_, err = env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: withdrawn.ID.String(), Period: "2024-04"})
	assert.ErrorIs(t, err, ledgerdomain.ErrBalanceNotFound)

	select {
	case evt := <-publisher.ch:
		assert.Equal(t, "2024-04", evt.Period)
		assert.Equal(t, 4, evt.CreatedCount)
		assert.ElementsMatch(t, []string{"tuition", "books"}, evt.ItemCodes)
		assert.ElementsMatch(t, []string{a.ID.String(), b.ID.String()}, evt.StudentIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("charges.generated was not published")
	}
}

func TestGenerateChargesSkipsExemptItems(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	student := env.Student(t, "Aiko", "2024")
	env.Item(t, "tuition", 30000, 1)
	env.Item(t, "books", 2500, 2)

	resp, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-03", All: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CreatedCount)
	assert.Equal(t, 1, resp.ItemCount)

	charges, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: student.ID.String()})
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, "books", charges[0].ItemCode)
}

func TestGenerateChargesRejectsDuplicatesAtomically(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	a := env.Student(t, "Aiko", "2024")
	env.Item(t, "tuition", 30000, 1)

	_, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", StudentIDs: []string{a.ID.String()}})
	require.NoError(t, err)

	b := env.Student(t, "Ben", "2024")
	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true})
	assert.ErrorIs(t, err, invoicedomain.ErrDuplicateCharge)

	charges, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: b.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, charges)

	_, err = env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: b.ID.String(), Period: "2024-04"})
	assert.ErrorIs(t, err, ledgerdomain.ErrBalanceNotFound)

	resp, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true, SkipExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.CreatedCount)
	assert.Equal(t, 1, resp.SkippedCount)

	charges, err = env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: b.ID.String()})
	require.NoError(t, err)
	assert.Len(t, charges, 1)
}

func TestGenerateChargesCopiesPriceAtCreation(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	student := env.Student(t, "Aiko", "2024")
	item := env.Item(t, "tuition", 30000, 1)

	_, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true})
	require.NoError(t, err)

	newPrice := int64(32000)
	_, err = env.Catalog.UpdateItem(ctx, item.ID.String(), catalogdomain.UpdateItemRequest{UnitPrice: &newPrice})
	require.NoError(t, err)

	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-05", All: true})
	require.NoError(t, err)

	april := period.MustParse("2024-04")
	charges, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: student.ID.String()})
	require.NoError(t, err)
	require.Len(t, charges, 2)
	assert.Equal(t, april, charges[0].BillingPeriod)
	assert.Equal(t, int64(30000), charges[0].Amount)
	assert.Equal(t, int64(32000), charges[1].Amount)

	may, err := env.Ledger.GetBalance(ctx, ledgerdomain.GetBalanceRequest{StudentID: student.ID.String(), Period: "2024-05"})
	require.NoError(t, err)
	assert.Equal(t, int64(30000), may.PreviousBalance)
	assert.Equal(t, int64(62000), may.Balance)
}

func TestGenerateChargesSelectorErrors(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	student := env.Student(t, "Aiko", "2024")
	env.Item(t, "tuition", 30000, 1)

	_, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStudentSelector)

	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true, StudentIDs: []string{student.ID.String()}})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStudentSelector)

	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", StudentIDs: []string{"nope"}})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStudent)

	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", StudentIDs: []string{student.ID.String(), "42"}})
	assert.ErrorIs(t, err, invoicedomain.ErrUnknownStudent)
	assert.Contains(t, err.Error(), "42")

	_, err = env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "April", All: true})
	assert.ErrorIs(t, err, period.ErrInvalidPeriod)

	charges, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: student.ID.String()})
	require.NoError(t, err)
	assert.Empty(t, charges)
}

func TestGenerateChargesWithNothingBillable(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	env.Student(t, "Aiko", "2024")

	resp, err := env.Invoices.GenerateCharges(ctx, invoicedomain.GenerateChargesRequest{Period: "2024-04", All: true})
	require.NoError(t, err)
	assert.Zero(t, resp.CreatedCount)
	assert.Zero(t, resp.ItemCount)
}

func TestListChargesValidation(t *testing.T) {
	ctx := context.Background()
	env := testenv.New(t, testenv.Options{})
	student := env.Student(t, "Aiko", "2024")

	_, err := env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: "x"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStudent)

	_, err = env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: student.ID.String(), Status: "paid"})
	assert.ErrorIs(t, err, invoicedomain.ErrInvalidStatus)

	_, err = env.Invoices.ListCharges(ctx, invoicedomain.ListChargesRequest{StudentID: "77"})
	assert.ErrorIs(t, err, studentdomain.ErrNotFound)
}
