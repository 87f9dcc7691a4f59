package search

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultMaxResults is used when no maxResults is given.
	DefaultMaxResults = 50

	// MaxResultsLimit is the largest accepted maxResults.
	MaxResultsLimit = 200

	// CollectLimit bounds the records collected across all folders,
	// independent of maxResults.
	CollectLimit = 1000
)

// Order is the sort direction of a search.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Params holds the raw arguments of a search call.
type Params struct {
	Query      string
	StartDate  string
	EndDate    string
	MaxResults int
	SortOrder  string
}

// Query is a parsed and normalized search.
type Query struct {
	Text       string
	Start      *time.Time
	End        *time.Time
	MaxResults int
	Order      Order
}

const dateOnly = "2006-01-02"

var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseQuery validates p and applies defaults.
func ParseQuery(p Params) (Query, error) {
	q := Query{
		Text:       strings.ToLower(p.Query),
		MaxResults: ClampMaxResults(p.MaxResults),
		Order:      OrderDesc,
	}

	switch strings.ToLower(p.SortOrder) {
	case "", string(OrderDesc):
	case string(OrderAsc):
		q.Order = OrderAsc
	default:
		return Query{}, fmt.Errorf("Invalid sortOrder: %q", p.SortOrder)
	}

	if p.StartDate != "" {
		t, _, err := parseDate(p.StartDate)
		if err != nil {
			return Query{}, fmt.Errorf("Invalid startDate: %w", err)
		}
		q.Start = &t
	}

	if p.EndDate != "" {
		t, isDateOnly, err := parseDate(p.EndDate)
		if err != nil {
			return Query{}, fmt.Errorf("Invalid endDate: %w", err)
		}
		if isDateOnly {
			t = t.Add(24*time.Hour - time.Millisecond)
		}
		q.End = &t
	}

	return q, nil
}

// ClampMaxResults maps n into [1, MaxResultsLimit]; zero means the default.
func ClampMaxResults(n int) int {
	switch {
	case n == 0:
		return DefaultMaxResults
	case n < 1:
		return 1
	case n > MaxResultsLimit:
		return MaxResultsLimit
	}
	return n
}

// parseDate accepts an ISO-8601 date or date-time. Values without a zone
// are read as UTC.
func parseDate(s string) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateOnly, s, time.UTC); err == nil {
		return t, true, nil
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("%q is not an ISO-8601 date", s)
}

func (q Query) matchesDate(t time.Time) bool {
	if q.Start == nil && q.End == nil {
		return true
	}
	if t.IsZero() {
		return false
	}
	if q.Start != nil && t.Before(*q.Start) {
		return false
	}
	if q.End != nil && t.After(*q.End) {
		return false
	}
	return true
}

func (q Query) matchesText(fields ...string) bool {
	if q.Text == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q.Text) {
			return true
		}
	}
	return false
}
