// Package cli implements tuitionctl, the operator command line for batch
// billing, balance repair and exports.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/smallbiznis/tuitionledger/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var version = "0.1.0"

const startTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "tuitionctl",
	Short: "Operate the tuition ledger from the command line",
	Long: `tuitionctl runs ledger operations directly against the configured database.

Configuration is read from the same environment variables and .env file as
the HTTP server (DATABASE_TYPE, DATABASE_HOST, REDIS_ADDR, AMQP_URL, ...).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runWithApp starts the core graph plus extra, fills targets and runs fn.
// Lifecycle hooks stop before returning so locks and brokers are released.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context) error, extra ...fx.Option) error {
	opts := append([]fx.Option{app.Core, fx.NopLogger}, extra...)
	fxApp := fx.New(opts...)
	if err := fxApp.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(cmd.Context(), startTimeout)
	defer cancel()
	if err := fxApp.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), startTimeout)
		defer cancel()
		_ = fxApp.Stop(stopCtx)
	}()

	return fn(cmd.Context())
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
