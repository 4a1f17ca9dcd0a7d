package service

import (
	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/tuitionledger/internal/invoice/domain"
)

// Settle walks open charges in the order given (oldest period first) and
// settles each one the remaining amount fully covers. It stops at the first
// charge it cannot cover; no charge is ever partially settled and later
// charges are not considered once the walk stops.
func Settle(open []invoicedomain.Charge, amount int64) ([]snowflake.ID, int64) {
	remaining := amount
	settled := make([]snowflake.ID, 0, len(open))
	for _, charge := range open {
		if remaining < charge.Amount {
			break
		}
		remaining -= charge.Amount
		settled = append(settled, charge.ID)
	}
	return settled, remaining
}
