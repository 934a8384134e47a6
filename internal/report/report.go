// Package report summarizes fetched activities per day, per type and by
// data quality.
package report

import (
	"sort"

	"sport-activities/internal/activity"
)

// UnknownDay groups activities without a start timestamp.
const UnknownDay = "unknown"

// Issue kinds reported by Quality
const (
	IssueMissingDistance      = "missing_distance"
	IssueMissingDuration      = "missing_duration"
	IssueZeroDistanceDuration = "zero_distance_nonzero_duration"
)

// Totals are summed over a group. Missing values count as zero.
type Totals struct {
	Count                int     `json:"count"`
	Distance             float64 `json:"distance"`
	Duration             float64 `json:"duration"`
	Calories             float64 `json:"calories"`
	ActivityTrainingLoad float64 `json:"activity_training_load"`
}

func (t *Totals) add(s activity.Summary) {
	t.Count++
	t.Distance += value(s.Distance)
	t.Duration += value(s.Duration)
	t.Calories += value(s.Calories)
	t.ActivityTrainingLoad += value(s.ActivityTrainingLoad)
}

func (t *Totals) merge(o Totals) {
	t.Count += o.Count
	t.Distance += o.Distance
	t.Duration += o.Duration
	t.Calories += o.Calories
	t.ActivityTrainingLoad += o.ActivityTrainingLoad
}

func (t Totals) rounded() Totals {
	t.Distance = activity.Round2(t.Distance)
	t.Duration = activity.Round2(t.Duration)
	t.Calories = activity.Round2(t.Calories)
	t.ActivityTrainingLoad = activity.Round2(t.ActivityTrainingLoad)
	return t
}

type DayTotals struct {
	Date string `json:"date"`
	Totals
}

type DayReport struct {
	Days   []DayTotals `json:"days"`
	Totals Totals      `json:"totals"`
}

// ByDay groups activities by the UTC day they started on, sorted by date
// with UnknownDay last.
func ByDay(summaries []activity.Summary) DayReport {
	groups := make(map[string]*Totals)
	for _, s := range summaries {
		key := UnknownDay
		if begin, ok := s.Begin(); ok {
			key = begin.UTC().Format("2006-01-02")
		}
		if groups[key] == nil {
			groups[key] = &Totals{}
		}
		groups[key].add(s)
	}

	report := DayReport{Days: []DayTotals{}}
	for _, key := range sortedKeys(groups) {
		report.Days = append(report.Days, DayTotals{Date: key, Totals: groups[key].rounded()})
		report.Totals.merge(*groups[key])
	}
	report.Totals = report.Totals.rounded()
	return report
}

type TypeTotals struct {
	TypeKey string         `json:"type_key"`
	Sport   activity.Sport `json:"sport"`
	Totals
}

type TypeReport struct {
	Types  []TypeTotals `json:"types"`
	Totals Totals       `json:"totals"`
}

// ByType groups activities by normalized type key, sorted by key.
func ByType(summaries []activity.Summary) TypeReport {
	groups := make(map[string]*Totals)
	for _, s := range summaries {
		key := activity.NormalizeTypeKey(s.TypeKey)
		if key == "" {
			key = activity.UnknownType
		}
		if groups[key] == nil {
			groups[key] = &Totals{}
		}
		groups[key].add(s)
	}

	report := TypeReport{Types: []TypeTotals{}}
	for _, key := range sortedKeys(groups) {
		report.Types = append(report.Types, TypeTotals{
			TypeKey: key,
			Sport:   activity.SportFor(key),
			Totals:  groups[key].rounded(),
		})
		report.Totals.merge(*groups[key])
	}
	report.Totals = report.Totals.rounded()
	return report
}

type QualityIssue struct {
	ActivityID activity.ID `json:"activity_id"`
	Issue      string      `json:"issue"`
}

type QualitySummary struct {
	Count           int `json:"count"`
	MissingDistance int `json:"missing_distance"`
	MissingDuration int `json:"missing_duration"`
	UnknownDay      int `json:"unknown_day"`
	IssuesCount     int `json:"issues_count"`
}

type QualityReport struct {
	Summary QualitySummary `json:"summary"`
	Issues  []QualityIssue `json:"issues"`
}

// Quality flags activities with missing or suspicious core metrics.
func Quality(summaries []activity.Summary) QualityReport {
	report := QualityReport{Issues: []QualityIssue{}}
	report.Summary.Count = len(summaries)

	for _, s := range summaries {
		if _, ok := s.Begin(); !ok {
			report.Summary.UnknownDay++
		}
		if s.Distance == nil {
			report.Summary.MissingDistance++
			report.Issues = append(report.Issues, QualityIssue{s.ActivityID, IssueMissingDistance})
		}
		if s.Duration == nil {
			report.Summary.MissingDuration++
			report.Issues = append(report.Issues, QualityIssue{s.ActivityID, IssueMissingDuration})
		}
		if s.Distance != nil && s.Duration != nil && *s.Distance == 0 && *s.Duration > 0 {
			report.Issues = append(report.Issues, QualityIssue{s.ActivityID, IssueZeroDistanceDuration})
		}
	}

	report.Summary.IssuesCount = len(report.Issues)
	return report
}

func value(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// sortedKeys orders keys ascending. UnknownDay sorts after every
// YYYY-MM-DD key; among type keys "unknown" takes its alphabetical place.
func sortedKeys(m map[string]*Totals) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
