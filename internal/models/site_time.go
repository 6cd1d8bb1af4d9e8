package models

import "time"

// DayKeyLayout is the calendar-date layout used to bucket accrued time
const DayKeyLayout = "2006-01-02"

// DayKey returns the local calendar date of t as YYYY-MM-DD
func DayKey(t time.Time) string {
	return t.Local().Format(DayKeyLayout)
}

// ParseDayKey validates a YYYY-MM-DD day key
func ParseDayKey(s string) (time.Time, error) {
	return time.ParseInLocation(DayKeyLayout, s, time.Local)
}

// SiteData is the persisted ledger: hostname -> day key -> milliseconds
type SiteData map[string]map[string]int64

// Add accrues ms into the (site, day) cell, creating it when absent
func (d SiteData) Add(site, day string, ms int64) {
	days, ok := d[site]
	if !ok {
		days = make(map[string]int64)
		d[site] = days
	}
	days[day] += ms
}

// SiteTime is a single site's accrued time for one day
type SiteTime struct {
	Hostname  string   `json:"hostname"`
	TimeSpent int64    `json:"timeSpent"`
	Category  Category `json:"category"`
	Percent   float64  `json:"percent"`
}
