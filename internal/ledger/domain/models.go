package domain

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/period"
)

// MonthlyBalance is the materialized position of one student for one month:
//
//	Balance = PreviousBalance + Charges - Payments
//
// Rows are always fully recomputed from charges, payments and the prior
// month's stored balance, never adjusted by deltas. Positive balances are
// owed to the school; negative balances are overpaid.
type MonthlyBalance struct {
	StudentID       snowflake.ID  `gorm:"primaryKey;autoIncrement:false" json:"student_id"`
	Period          period.Period `gorm:"primaryKey;type:varchar(7)" json:"period"`
	PreviousBalance int64         `gorm:"not null" json:"previous_balance"`
	Charges         int64         `gorm:"not null" json:"charges"`
	Payments        int64         `gorm:"not null" json:"payments"`
	Balance         int64         `gorm:"not null;index" json:"balance"`
}

func (MonthlyBalance) TableName() string { return "monthly_balances" }

// Compute fills Balance from the other three fields.
func (b *MonthlyBalance) Compute() {
	b.Balance = b.PreviousBalance + b.Charges - b.Payments
}
