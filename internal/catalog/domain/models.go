package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Item is a chargeable catalog entry. Items without a unit price are never
// billed; price edits never reach charges that were already issued.
type Item struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	Code         string       `gorm:"type:varchar(64);not null;uniqueIndex" json:"code"`
	Name         string       `gorm:"not null" json:"name"`
	UnitPrice    *int64       `gorm:"column:unit_price" json:"unit_price"`
	Active       bool         `gorm:"not null" json:"active"`
	DisplayOrder int          `gorm:"not null;index" json:"display_order"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Item) TableName() string { return "catalog_items" }

// Billable reports whether generation would charge this item.
func (i Item) Billable() bool {
	return i.Active && i.UnitPrice != nil
}
