// Package testenv wires the ledger services against an in-memory SQLite
// database for package tests.
package testenv

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/tuitionledger/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/tuitionledger/internal/catalog/repository"
	catalogservice "github.com/smallbiznis/tuitionledger/internal/catalog/service"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/smallbiznis/tuitionledger/internal/events"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/tuitionledger/internal/invoice/repository"
	invoiceservice "github.com/smallbiznis/tuitionledger/internal/invoice/service"
	ledgerdomain "github.com/smallbiznis/tuitionledger/internal/ledger/domain"
	ledgerrepository "github.com/smallbiznis/tuitionledger/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/tuitionledger/internal/ledger/service"
	"github.com/smallbiznis/tuitionledger/internal/migration"
	paymentdomain "github.com/smallbiznis/tuitionledger/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/tuitionledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/tuitionledger/internal/payment/service"
	studentdomain "github.com/smallbiznis/tuitionledger/internal/student/domain"
	studentrepository "github.com/smallbiznis/tuitionledger/internal/student/repository"
	studentservice "github.com/smallbiznis/tuitionledger/internal/student/service"
	"github.com/smallbiznis/tuitionledger/internal/studentlock"
	dbpkg "github.com/smallbiznis/tuitionledger/pkg/db"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type Options struct {
	Cascade   bool
	Billing   *config.BillingConfig
	Publisher events.Publisher
}

type Env struct {
	DB     *gorm.DB
	Log    *zap.Logger
	Clock  *clock.FakeClock
	Config config.Config
	Guard  *studentlock.Guard

	StudentRepo studentdomain.Repository
	CatalogRepo catalogdomain.Repository
	ChargeRepo  invoicedomain.Repository
	PaymentRepo paymentdomain.Repository
	LedgerRepo  ledgerdomain.Repository

	Students studentdomain.Service
	Catalog  catalogdomain.Service
	Ledger   ledgerdomain.Service
	Invoices invoicedomain.Service
	Payments paymentdomain.Service
}

func New(t testing.TB, opts Options) *Env {
	t.Helper()

	conn, err := dbpkg.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	billingCfg := config.DefaultBillingConfig()
	if opts.Billing != nil {
		billingCfg = *opts.Billing
	}
	billing, err := config.NewStaticBillingConfigHolder(billingCfg)
	require.NoError(t, err)

	log := zaptest.NewLogger(t)
	fake := clock.NewFakeClock(time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC))
	cfg := config.Config{BalanceCascadeForward: opts.Cascade}

	env := &Env{
		DB:          conn,
		Log:         log,
		Clock:       fake,
		Config:      cfg,
		StudentRepo: studentrepository.Provide(),
		CatalogRepo: catalogrepository.Provide(),
		ChargeRepo:  invoicerepository.Provide(),
		PaymentRepo: paymentrepository.Provide(),
		LedgerRepo:  ledgerrepository.Provide(),
	}
	env.Guard = studentlock.NewGuard(studentlock.GuardParams{
		DB:       conn,
		Locker:   studentlock.NewLocalLocker(),
		Students: env.StudentRepo,
	})

	env.Students = studentservice.New(studentservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: env.StudentRepo,
	})
	env.Catalog = catalogservice.New(catalogservice.Params{
		DB: conn, Log: log, GenID: node, Clock: fake, Repo: env.CatalogRepo,
	})
	env.Ledger = ledgerservice.NewService(ledgerservice.Params{
		DB:       conn,
		Log:      log,
		Config:   cfg,
		Repo:     env.LedgerRepo,
		Students: env.Students,
		Guard:    env.Guard,
	})
	env.Invoices = invoiceservice.NewService(invoiceservice.ServiceParam{
		DB:          conn,
		Log:         log,
		GenID:       node,
		Clock:       fake,
		Repo:        env.ChargeRepo,
		Students:    env.Students,
		CatalogRepo: env.CatalogRepo,
		Billing:     billing,
		LedgerSvc:   env.Ledger,
		Guard:       env.Guard,
		Publisher:   opts.Publisher,
	})
	env.Payments = paymentservice.NewService(paymentservice.Params{
		DB:         conn,
		Log:        log,
		GenID:      node,
		Clock:      fake,
		Repo:       env.PaymentRepo,
		ChargeRepo: env.ChargeRepo,
		Students:   env.Students,
		LedgerSvc:  env.Ledger,
		Guard:      env.Guard,
		Publisher:  opts.Publisher,
	})
	return env
}

func (e *Env) Student(t testing.TB, name, cohort string) studentdomain.Student {
	t.Helper()
	s, err := e.Students.Create(context.Background(), studentdomain.CreateStudentRequest{Name: name, Cohort: cohort})
	require.NoError(t, err)
	return s
}

func (e *Env) Item(t testing.TB, code string, price int64, order int) catalogdomain.Item {
	t.Helper()
	item, err := e.Catalog.CreateItem(context.Background(), catalogdomain.CreateItemRequest{
		Name:         code,
		Code:         code,
		UnitPrice:    &price,
		DisplayOrder: order,
	})
	require.NoError(t, err)
	return item
}
