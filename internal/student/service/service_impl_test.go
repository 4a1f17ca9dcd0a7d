package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/student/domain"
	"github.com/smallbiznis/tuitionledger/internal/student/repository"
	"github.com/smallbiznis/tuitionledger/internal/student/service"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Student{}))
	return conn
}

func newService(t *testing.T, conn *gorm.DB) domain.Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return service.New(service.Params{
		DB:    conn,
		Log:   zaptest.NewLogger(t),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, setupTestDB(t))

	created, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "  Mai Tanaka ", Cohort: "2024-spring"})
	require.NoError(t, err)
	assert.Equal(t, "Mai Tanaka", created.Name)
	assert.Equal(t, domain.StatusActive, created.Status)

	got, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "2024-spring", got.Cohort)

	_, err = svc.Create(ctx, domain.CreateStudentRequest{Name: " "})
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.GetByID(ctx, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidID)

	_, err = svc.GetByID(ctx, "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEnrollmentDrivesEnrolledIDs(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, setupTestDB(t))

	a, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "B"})
	require.NoError(t, err)

	_, err = svc.SetStatus(ctx, b.ID.String(), "withdrawn")
	require.NoError(t, err)

	ids, err := svc.ListEnrolledIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{a.ID}, ids)

	_, err = svc.SetStatus(ctx, a.ID.String(), "graduated")
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = svc.SetStatus(ctx, "999", "active")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFindMissing(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, setupTestDB(t))

	a, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "A"})
	require.NoError(t, err)

	missing, err := svc.FindMissing(ctx, []snowflake.ID{a.ID, 42})
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{42}, missing)

	ok, err := svc.Exists(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, setupTestDB(t))

	a, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "A"})
	require.NoError(t, err)

	assert.NoError(t, svc.Require(ctx, a.ID))
	assert.ErrorIs(t, svc.Require(ctx, 42), domain.ErrNotFound)
}

func TestListPaginatesByID(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, setupTestDB(t))

	for _, name := range []string{"A", "B", "C"} {
		_, err := svc.Create(ctx, domain.CreateStudentRequest{Name: name, Cohort: "c1"})
		require.NoError(t, err)
	}
	_, err := svc.Create(ctx, domain.CreateStudentRequest{Name: "D", Cohort: "c2"})
	require.NoError(t, err)

	first, err := svc.List(ctx, domain.ListStudentRequest{Cohort: "c1", PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Students, 2)
	assert.True(t, first.HasMore)

	second, err := svc.List(ctx, domain.ListStudentRequest{Cohort: "c1", PageSize: 2, PageToken: first.NextPageToken})
	require.NoError(t, err)
	require.Len(t, second.Students, 1)
	assert.False(t, second.HasMore)
	assert.Equal(t, "C", second.Students[0].Name)

	_, err = svc.List(ctx, domain.ListStudentRequest{Status: "unknown"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}
