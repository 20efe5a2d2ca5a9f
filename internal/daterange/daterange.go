// Package daterange resolves the relative and absolute date tokens accepted
// by the analytics providers ("yesterday", "30daysAgo", "2024-03-01") into
// concrete day-bounded time ranges.
package daterange

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Default tokens used when a caller omits one side of the range.
const (
	DefaultStartToken = "30daysAgo"
	DefaultEndToken   = "yesterday"
)

// ErrInvalidToken marks a date token that matched no recognized form.
var ErrInvalidToken = eris.New("daterange: invalid date token")

// Range is a resolved start/end pair. Start is the first instant of its
// calendar day, End the last. Start never follows End.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the number of calendar days the range spans, inclusive.
func (r Range) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether t falls within the range, inclusive on both ends.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolver resolves tokens relative to a fixed clock. The zero value uses
// time.Now.
type Resolver struct {
	// Now overrides the clock, for tests and for deterministic re-runs.
	Now func() time.Time

	// SubstituteToday resolves "today" as yesterday. Some call sites want
	// this because same-day provider data lags; it is an option here, not a
	// property of the grammar.
	SubstituteToday bool
}

func (rs Resolver) now() time.Time {
	if rs.Now != nil {
		return rs.Now()
	}
	return time.Now()
}

// ResolveDay resolves a single token to a calendar day (midnight, local).
func (rs Resolver) ResolveDay(token string) (time.Time, error) {
	today := startOfDay(rs.now())

	switch {
	case token == "yesterday":
		return today.AddDate(0, 0, -1), nil
	case token == "today":
		if rs.SubstituteToday {
			return today.AddDate(0, 0, -1), nil
		}
		return today, nil
	case strings.HasSuffix(token, "daysAgo"):
		n, err := strconv.Atoi(strings.TrimSuffix(token, "daysAgo"))
		if err != nil || n <= 0 {
			return time.Time{}, eris.Wrapf(ErrInvalidToken, "%q", token)
		}
		return today.AddDate(0, 0, -n), nil
	}

	t, err := time.ParseInLocation("2006-01-02", token, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrapf(ErrInvalidToken, "%q", token)
	}
	return t, nil
}

// Resolve resolves a start and end token into a day-bounded Range. Empty
// tokens fall back to the defaults (30daysAgo .. yesterday).
func (rs Resolver) Resolve(startToken, endToken string) (Range, error) {
	if startToken == "" {
		startToken = DefaultStartToken
	}
	if endToken == "" {
		endToken = DefaultEndToken
	}

	start, err := rs.ResolveDay(startToken)
	if err != nil {
		return Range{}, eris.Wrap(err, "daterange: start")
	}
	end, err := rs.ResolveDay(endToken)
	if err != nil {
		return Range{}, eris.Wrap(err, "daterange: end")
	}

	r := Range{Start: startOfDay(start), End: endOfDay(end)}
	if r.Start.After(r.End) {
		return Range{}, eris.Errorf("daterange: start %s after end %s", startToken, endToken)
	}
	return r, nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}
