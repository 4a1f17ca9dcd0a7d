package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusWithdrawn Status = "withdrawn"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusWithdrawn
}

// Student is the directory record the ledger bills against. Only active
// students are picked up by "all enrolled" charge generation.
type Student struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"not null" json:"name"`
	Cohort    string       `gorm:"not null;default:'';index" json:"cohort"`
	Status    Status       `gorm:"type:varchar(16);not null;index" json:"status"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

func (Student) TableName() string { return "students" }
