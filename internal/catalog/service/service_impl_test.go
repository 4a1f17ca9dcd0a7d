package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	"github.com/smallbiznis/tuitionledger/internal/catalog/repository"
	"github.com/smallbiznis/tuitionledger/internal/catalog/service"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newService(t *testing.T) domain.Service {
	t.Helper()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Item{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.New(service.Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func price(v int64) *int64 { return &v }
func flag(v bool) *bool    { return &v }

func TestCreateItemDerivesCodeFromName(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	item, err := svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Dormitory Fee", UnitPrice: price(15000)})
	require.NoError(t, err)
	assert.Equal(t, "dormitory-fee", item.Code)
	assert.True(t, item.Active)
	assert.True(t, item.Billable())

	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Dormitory fee"})
	assert.ErrorIs(t, err, domain.ErrDuplicateCode)

	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Bad", UnitPrice: price(-1)})
	assert.ErrorIs(t, err, domain.ErrInvalidUnitPrice)

	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: ""})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
}

func TestListBillableSkipsInactiveAndUnpriced(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Books", Code: "books", UnitPrice: price(3000), DisplayOrder: 2})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Tuition", Code: "TUITION", UnitPrice: price(30000), DisplayOrder: 1})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Trip", DisplayOrder: 3})
	require.NoError(t, err)
	_, err = svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Old", UnitPrice: price(10), Active: flag(false)})
	require.NoError(t, err)

	billable, err := svc.ListBillable(ctx)
	require.NoError(t, err)
	require.Len(t, billable, 2)
	assert.Equal(t, "tuition", billable[0].Code)
	assert.Equal(t, "books", billable[1].Code)

	active, err := svc.ListItems(ctx, domain.ListItemsRequest{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 3)

	all, err := svc.ListItems(ctx, domain.ListItemsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	item, err := svc.CreateItem(ctx, domain.CreateItemRequest{Name: "Books", UnitPrice: price(3000)})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, item.ID.String(), domain.UpdateItemRequest{UnitPrice: price(3500), Active: flag(false)})
	require.NoError(t, err)
	require.NotNil(t, updated.UnitPrice)
	assert.Equal(t, int64(3500), *updated.UnitPrice)
	assert.False(t, updated.Active)

	cleared, err := svc.UpdateItem(ctx, item.ID.String(), domain.UpdateItemRequest{ClearPrice: true})
	require.NoError(t, err)
	assert.Nil(t, cleared.UnitPrice)

	_, err = svc.UpdateItem(ctx, "123", domain.UpdateItemRequest{Active: flag(true)})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNormalizeCode(t *testing.T) {
	code, err := service.NormalizeCode("", "Entrance Exam Fee")
	require.NoError(t, err)
	assert.Equal(t, "entrance-exam-fee", code)

	_, err = service.NormalizeCode("has space", "x")
	assert.ErrorIs(t, err, domain.ErrInvalidCode)
}
