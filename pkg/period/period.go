// Package period models a billing month (YYYY-MM).
package period

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const layout = "2006-01"

var ErrInvalidPeriod = errors.New("invalid_period")

// Period is a calendar month in UTC. The zero value is invalid.
type Period struct {
	Year  int
	Month time.Month
}

// Parse accepts the YYYY-MM form.
func Parse(value string) (Period, error) {
	value = strings.TrimSpace(value)
	if len(value) != len(layout) || value[4] != '-' {
		return Period{}, ErrInvalidPeriod
	}
	year, err := strconv.Atoi(value[:4])
	if err != nil || year < 1 {
		return Period{}, ErrInvalidPeriod
	}
	month, err := strconv.Atoi(value[5:])
	if err != nil || month < 1 || month > 12 {
		return Period{}, ErrInvalidPeriod
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustParse panics on malformed input. Intended for tests and constants.
func MustParse(value string) Period {
	p, err := Parse(value)
	if err != nil {
		panic(fmt.Sprintf("period: %q: %v", value, err))
	}
	return p
}

// Of returns the period containing t, evaluated in UTC.
func Of(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) IsZero() bool {
	return p.Year == 0 && p.Month == 0
}

func (p Period) Valid() bool {
	return p.Year > 0 && p.Month >= time.January && p.Month <= time.December
}

// Start is the first instant of the month.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant of the following month (exclusive bound).
func (p Period) End() time.Time {
	return p.Next().Start()
}

func (p Period) Next() Period {
	return Of(p.Start().AddDate(0, 1, 0))
}

func (p Period) Prev() Period {
	return Of(p.Start().AddDate(0, -1, 0))
}

func (p Period) Contains(t time.Time) bool {
	t = t.UTC()
	return !t.Before(p.Start()) && t.Before(p.End())
}

func (p Period) Before(o Period) bool {
	if p.Year != o.Year {
		return p.Year < o.Year
	}
	return p.Month < o.Month
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Period) UnmarshalText(data []byte) error {
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Value stores the period as its YYYY-MM text so lexical order equals calendar order.
func (p Period) Value() (driver.Value, error) {
	if !p.Valid() {
		return nil, ErrInvalidPeriod
	}
	return p.String(), nil
}

func (p *Period) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	case nil:
		*p = Period{}
		return nil
	default:
		return fmt.Errorf("period: cannot scan %T", src)
	}
}

// GormDataType lets GORM map the column to a text type on every dialect.
func (Period) GormDataType() string {
	return "string"
}
