// Package app assembles the fx graph shared by the HTTP server and the CLI.
package app

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/internal/catalog"
	"github.com/smallbiznis/tuitionledger/internal/clock"
	"github.com/smallbiznis/tuitionledger/internal/config"
	"github.com/smallbiznis/tuitionledger/internal/events"
	"github.com/smallbiznis/tuitionledger/internal/invoice"
	"github.com/smallbiznis/tuitionledger/internal/ledger"
	"github.com/smallbiznis/tuitionledger/internal/observability"
	"github.com/smallbiznis/tuitionledger/internal/payment"
	"github.com/smallbiznis/tuitionledger/internal/report"
	"github.com/smallbiznis/tuitionledger/internal/student"
	"github.com/smallbiznis/tuitionledger/internal/studentlock"
	"github.com/smallbiznis/tuitionledger/pkg/db"
	"go.uber.org/fx"
)

// Core wires infrastructure and every ledger domain, without the schema
// migration or the HTTP server.
var Core = fx.Options(
	// Core Infrastructure
	config.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
	studentlock.Module,
	events.Module,

	// Functional Domains
	student.Module,
	catalog.Module,
	ledger.Module,
	invoice.Module,
	payment.Module,
	report.Module,
)

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
