package main

import (
	"github.com/smallbiznis/tuitionledger/internal/app"
	"github.com/smallbiznis/tuitionledger/internal/migration"
	"github.com/smallbiznis/tuitionledger/internal/server"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		app.Core,
		migration.Module,
		server.Module,
	).Run()
}
