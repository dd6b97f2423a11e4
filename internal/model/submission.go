package model

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Period is a calendar month in zero-padded YYYY-MM form.
// Periods order lexicographically.
type Period string

const periodLayout = "2006-01"

// PeriodOf returns the period containing t, in t's location.
func PeriodOf(t time.Time) Period { return Period(t.Format(periodLayout)) }

func (p Period) String() string { return string(p) }

func (p Period) Valid() bool {
	if len(p) != len(periodLayout) {
		return false
	}
	_, err := time.Parse(periodLayout, string(p))
	return err == nil
}

func (p Period) Before(o Period) bool { return p < o }

// ParsePeriod builds a period from year/month query values ("2024", "7" or "07").
// Returns (period, true) if both parts are well formed.
func ParsePeriod(year, month string) (Period, bool) {
	year, month = strings.TrimSpace(year), strings.TrimSpace(month)
	if len(year) != 4 || !allDigits(year) || !allDigits(month) {
		return "", false
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return "", false
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return Period(fmt.Sprintf("%04d-%02d", y, m)), true
}

// allDigits rejects the signs strconv.Atoi would accept.
func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Submission is the accepted upload of one customer for one period.
type Submission struct {
	ID          int64     `db:"id"           json:"id"`
	CustomerID  int64     `db:"customer_id"  json:"customer_id"`
	PeriodKey   Period    `db:"period_key"   json:"period"`
	ArtifactRef string    `db:"artifact_ref" json:"artifact_ref"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// Payload is the uploaded content handed to the artifact store.
type Payload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Status string

const (
	StatusSubmitted    Status = "SUBMITTED"
	StatusPending      Status = "PENDING"
	StatusNotSubmitted Status = "NOT SUBMITTED"
)

func (s Status) String() string { return string(s) }

// ReportRow is one customer's status for the requested period.
type ReportRow struct {
	CustomerID int64  `json:"id"`
	Name       string `json:"name"`
	AccessCode string `json:"code"`
	Status     Status `json:"status"`
}
