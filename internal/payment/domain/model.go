package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Method string

const (
	MethodCash         Method = "cash"
	MethodBankTransfer Method = "bank_transfer"
	MethodCard         Method = "card"
	MethodOther        Method = "other"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodBankTransfer, MethodCard, MethodOther:
		return true
	default:
		return false
	}
}

// Payment is an append-only fact. Corrections are new payments.
// PaidOn is the calendar date at UTC midnight; it decides which month's
// balance the payment lands in.
type Payment struct {
	ID        snowflake.ID `json:"id" gorm:"primaryKey"`
	StudentID snowflake.ID `json:"student_id" gorm:"not null;index:ix_payments_student_paid_on,priority:1;uniqueIndex:ux_payments_student_reference,priority:1"`
	PaidOn    time.Time    `json:"paid_on" gorm:"not null;index:ix_payments_student_paid_on,priority:2;index"`
	Amount    int64        `json:"amount" gorm:"not null"`
	Method    Method       `json:"method" gorm:"type:varchar(32);not null"`
	Reference *string      `json:"reference,omitempty" gorm:"type:varchar(128);uniqueIndex:ux_payments_student_reference,priority:2"`
	CreatedAt time.Time    `json:"created_at" gorm:"not null"`
}

func (Payment) TableName() string { return "payments" }

const DateLayout = "2006-01-02"
