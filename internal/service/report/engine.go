// Package report classifies customers per period. It only reads.
package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmehdipour/clipgate/internal/model"
)

// Classify is the status rule: a submission wins; otherwise a period before
// the current one is missed and the current (or a future) one is still open.
func Classify(submitted bool, period model.Period, now time.Time) model.Status {
	if submitted {
		return model.StatusSubmitted
	}
	if period.Before(model.PeriodOf(now)) {
		return model.StatusNotSubmitted
	}
	return model.StatusPending
}

type Registry interface {
	List(ctx context.Context) ([]model.Customer, error)
}

type Submissions interface {
	Exists(ctx context.Context, customerID int64, period model.Period) (bool, error)
	SubmittedCustomerIDs(ctx context.Context, period model.Period) (map[int64]bool, error)
}

type Engine struct {
	registry    Registry
	submissions Submissions
	now         func() time.Time
}

func NewEngine(registry Registry, submissions Submissions, now func() time.Time) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{registry: registry, submissions: submissions, now: now}
}

func (e *Engine) Classify(ctx context.Context, c model.Customer, period model.Period, now time.Time) (model.Status, error) {
	ok, err := e.submissions.Exists(ctx, c.ID, period)
	if err != nil {
		return "", fmt.Errorf("check submission: %w", err)
	}
	return Classify(ok, period, now), nil
}

// Build classifies customers in the given order. nameFilter, when set, keeps
// only customers whose name contains it, ignoring case.
func (e *Engine) Build(ctx context.Context, customers []model.Customer, period model.Period, now time.Time, nameFilter string) ([]model.ReportRow, error) {
	customers = filterByName(customers, nameFilter)
	rows := make([]model.ReportRow, 0, len(customers))
	if len(customers) == 0 {
		return rows, nil
	}

	submitted, err := e.submissions.SubmittedCustomerIDs(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("load submissions for %s: %w", period, err)
	}
	for _, c := range customers {
		rows = append(rows, model.ReportRow{
			CustomerID: c.ID,
			Name:       c.Name,
			AccessCode: c.AccessCode,
			Status:     Classify(submitted[c.ID], period, now),
		})
	}
	return rows, nil
}

func filterByName(customers []model.Customer, filter string) []model.Customer {
	filter = strings.ToLower(strings.TrimSpace(filter))
	if filter == "" {
		return customers
	}
	out := make([]model.Customer, 0, len(customers))
	for _, c := range customers {
		if strings.Contains(strings.ToLower(c.Name), filter) {
			out = append(out, c)
		}
	}
	return out
}

// Query is what the admin report page asks for. Year and Month are the raw
// query values.
type Query struct {
	Year  string
	Month string
	Name  string
}

type Result struct {
	Period model.Period      `json:"period"`
	Rows   []model.ReportRow `json:"rows"`
}

// ResolvePeriod reads year/month, falling back to the period of now when
// either part is missing or malformed.
func ResolvePeriod(year, month string, now time.Time) model.Period {
	if p, ok := model.ParsePeriod(year, month); ok {
		return p
	}
	return model.PeriodOf(now)
}

// Report lists the registry and classifies every customer for q's period.
func (e *Engine) Report(ctx context.Context, q Query) (Result, error) {
	now := e.now()
	period := ResolvePeriod(q.Year, q.Month, now)

	customers, err := e.registry.List(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list customers: %w", err)
	}
	rows, err := e.Build(ctx, customers, period, now, q.Name)
	if err != nil {
		return Result{}, err
	}
	return Result{Period: period, Rows: rows}, nil
}
