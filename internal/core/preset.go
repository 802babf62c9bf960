package core

import (
	"fmt"
	"strings"
	"time"
)

// Preset names a date range relative to now.
type Preset string

const (
	PresetAll     Preset = "all"
	PresetToday   Preset = "today"
	PresetWeek    Preset = "week"
	PresetMonth   Preset = "month"
	PresetQuarter Preset = "quarter"
	PresetYear    Preset = "year"
	PresetCustom  Preset = "custom"
)

// Presets in the order they are offered to users.
var Presets = []Preset{PresetAll, PresetToday, PresetWeek, PresetMonth, PresetQuarter, PresetYear, PresetCustom}

var presetLabels = map[Preset]string{
	PresetAll:     "All time",
	PresetToday:   "Today",
	PresetWeek:    "Last 7 days",
	PresetMonth:   "This month",
	PresetQuarter: "Last 3 months",
	PresetYear:    "This year",
	PresetCustom:  "Custom range",
}

// ParsePreset maps a query value to a Preset; unknown values mean all.
func ParsePreset(s string) Preset {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presetLabels[p]; ok {
		return p
	}
	return PresetAll
}

// LookupPreset is the strict form of ParsePreset: unknown names are an
// error instead of falling back to all.
func LookupPreset(s string) (Preset, error) {
	p := Preset(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := presetLabels[p]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownPreset, s)
	}
	return p, nil
}

func (p Preset) Label() string {
	if l, ok := presetLabels[p]; ok {
		return l
	}
	return presetLabels[PresetAll]
}

// StartOfDay floors t to 00:00:00.000 of its calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay ceils t to 23:59:59.999 of its calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// ResolvePreset turns a relative preset into concrete bounds measured from
// now. PresetAll and PresetCustom resolve to the empty range; custom bounds
// come from CustomRange.
func ResolvePreset(p Preset, now time.Time) DateRange {
	end := EndOfDay(now)
	switch p {
	case PresetToday:
		return DateRange{Start: StartOfDay(now), End: end}
	case PresetWeek:
		return DateRange{Start: StartOfDay(now.AddDate(0, 0, -6)), End: end}
	case PresetMonth:
		y, m, _ := now.Date()
		return DateRange{Start: time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), End: end}
	case PresetQuarter:
		return DateRange{Start: StartOfDay(now.AddDate(0, -3, 0)), End: end}
	case PresetYear:
		return DateRange{Start: time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), End: end}
	}
	return DateRange{}
}

// CustomRange builds a range from user-supplied YYYY-MM-DD strings. The end
// day is included in full. A blank or malformed bound is left open.
func CustomRange(start, end string, loc *time.Location) (DateRange, error) {
	if loc == nil {
		loc = time.Local
	}
	var r DateRange
	if d, err := ParseDate(start); err == nil {
		r.Start = d.In(loc)
	}
	if d, err := ParseDate(end); err == nil {
		r.End = EndOfDay(d.In(loc))
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.Start.After(r.End) {
		return DateRange{}, ErrInvertedRange
	}
	return r, nil
}
