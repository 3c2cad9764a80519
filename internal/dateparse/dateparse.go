// Package dateparse turns the free-form date labels shown next to reviews into times.
package dateparse

import (
	"regexp"
	"strconv"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

var (
	// 2024.05.12, 2024-5-12, 2024/05/12, 2024년 5월 12일
	fullYear = regexp.MustCompile(`(\d{4})\s*(?:[.\-/]|년)\s*(\d{1,2})\s*(?:[.\-/]|월)\s*(\d{1,2})`)
	// 23.12.25 as printed for reviews outside the current year
	shortYear = regexp.MustCompile(`(?:^|[^\d])(\d{2})\.(\d{1,2})\.(\d{1,2})(?:[^\d]|$)`)
	// 5.12 or 5월 12일 within the current year
	monthDay = regexp.MustCompile(`(?:^|[^\d])(\d{1,2})\s*(?:[./]|월)\s*(\d{1,2})(?:[^\d]|$)`)
)

// Resolver resolves date labels in a fixed location.
type Resolver struct {
	clock Clock
	loc   *time.Location
}

// New returns a Resolver. A nil loc means UTC.
func New(clock Clock, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{clock: clock, loc: loc}
}

// Parse returns midnight of the date found in text, or nil when no
// recognizable or valid date is present. A month/day label more than a day
// ahead of now belongs to the previous year.
func (r *Resolver) Parse(text string) *time.Time {
	if text == "" {
		return nil
	}
	if m := fullYear.FindStringSubmatch(text); m != nil {
		return r.build(atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := shortYear.FindStringSubmatch(text); m != nil {
		return r.build(2000+atoi(m[1]), atoi(m[2]), atoi(m[3]))
	}
	if m := monthDay.FindStringSubmatch(text); m != nil {
		now := r.clock.Now().In(r.loc)
		t := r.build(now.Year(), atoi(m[1]), atoi(m[2]))
		if t != nil && t.After(now.Add(24*time.Hour)) {
			t = r.build(now.Year()-1, atoi(m[1]), atoi(m[2]))
		}
		return t
	}
	return nil
}

func (r *Resolver) build(year, month, day int) *time.Time {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return nil
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, r.loc)
	// time.Date normalizes 2.30 into March; reject instead.
	if t.Month() != time.Month(month) || t.Day() != day {
		return nil
	}
	return &t
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
