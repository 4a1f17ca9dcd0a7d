// Package domain contains persistence models for monthly charges.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tuitionledger/pkg/period"
)

// ChargeStatus is OPEN until a payment fully covers the charge.
type ChargeStatus string

const (
	ChargeStatusOpen    ChargeStatus = "OPEN"
	ChargeStatusSettled ChargeStatus = "SETTLED"
)

func (s ChargeStatus) Valid() bool {
	return s == ChargeStatusOpen || s == ChargeStatusSettled
}

// Charge is one billed catalog item for one student and one month. Amount is
// the item's price at generation time and never changes; Status is the only
// column written after insert.
type Charge struct {
	ID            snowflake.ID  `gorm:"primaryKey" json:"id"`
	StudentID     snowflake.ID  `gorm:"not null;uniqueIndex:ux_charges_student_item_period,priority:1;index:ix_charges_student_status,priority:1" json:"student_id"`
	CatalogItemID snowflake.ID  `gorm:"not null;uniqueIndex:ux_charges_student_item_period,priority:2;index" json:"catalog_item_id"`
	BillingPeriod period.Period `gorm:"type:varchar(7);not null;uniqueIndex:ux_charges_student_item_period,priority:3;index" json:"billing_period"`
	Amount        int64         `gorm:"not null" json:"amount"`
	Status        ChargeStatus  `gorm:"type:varchar(16);not null;index:ix_charges_student_status,priority:2" json:"status"`
	CreatedAt     time.Time     `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Charge) TableName() string { return "charges" }

// ChargeView is a charge joined with its catalog item for listings.
type ChargeView struct {
	Charge
	ItemCode string `json:"item_code"`
	ItemName string `json:"item_name"`
}

// BilledPair identifies a (student, item) already charged in a period.
type BilledPair struct {
	StudentID     snowflake.ID
	CatalogItemID snowflake.ID
}
