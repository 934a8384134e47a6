package activity

import (
	"encoding/json"
	"time"
)

// Fields is the normalized projection of an activity. Numeric fields are
// nil when no alias held a usable value.
type Fields struct {
	ActivityID     ID         `json:"activity_id"`
	TypeKey        string     `json:"type_key"`
	Sport          Sport      `json:"sport"`
	ActivityName   *string    `json:"activity_name"`
	BeginTimestamp *time.Time `json:"begin_timestamp"`
	EndTimeGMT     *string    `json:"end_time_gmt"`

	Distance        *float64 `json:"distance"`
	Duration        *float64 `json:"duration"`
	MovingDuration  *float64 `json:"moving_duration"`
	ElapsedDuration *float64 `json:"elapsed_duration"`
	AverageSpeed    *float64 `json:"average_speed"`
	MaxSpeed        *float64 `json:"max_speed"`
	AverageHR       *int     `json:"average_hr"`
	MaxHR           *int     `json:"max_hr"`
	Calories        *float64 `json:"calories"`
	BMRCalories     *float64 `json:"bmr_calories"`
	ElevationGain   *float64 `json:"elevation_gain"`
	ElevationLoss   *float64 `json:"elevation_loss"`
	AvgPower        *float64 `json:"avg_power"`

	ActivityTrainingLoad    *float64 `json:"activity_training_load"`
	AerobicTrainingEffect   *float64 `json:"aerobic_training_effect"`
	AnaerobicTrainingEffect *float64 `json:"anaerobic_training_effect"`

	Cycling  *CyclingMetrics  `json:"cycling,omitempty"`
	Running  *RunningMetrics  `json:"running,omitempty"`
	Swimming *SwimmingMetrics `json:"swimming,omitempty"`
}

type CyclingMetrics struct {
	AverageCadenceRPM            *float64 `json:"average_cadence_rpm"`
	MaxCadenceRPM                *float64 `json:"max_cadence_rpm"`
	NormalizedPower              *float64 `json:"normalized_power"`
	MaxPower                     *float64 `json:"max_power"`
	EndLatitude                  *float64 `json:"end_latitude"`
	EndLongitude                 *float64 `json:"end_longitude"`
	ExcludeFromPowerCurveReports *bool    `json:"exclude_from_power_curve_reports"`
}

type RunningMetrics struct {
	AverageCadenceSPM      *float64 `json:"average_cadence_spm"`
	AvgGradeAdjustedSpeed  *float64 `json:"avg_grade_adjusted_speed"`
	AvgGroundContactTime   *float64 `json:"avg_ground_contact_time"`
	AvgStrideLength        *float64 `json:"avg_stride_length"`
	AvgVerticalOscillation *float64 `json:"avg_vertical_oscillation"`
	AvgVerticalRatio       *float64 `json:"avg_vertical_ratio"`
	Steps                  *int     `json:"steps"`
}

type SwimmingMetrics struct {
	PoolLength            *float64 `json:"pool_length"`
	ActiveLengths         *int     `json:"active_lengths"`
	TotalStrokes          *int     `json:"total_strokes"`
	AverageSwimCadenceSPM *float64 `json:"average_swim_cadence_spm"`
	AverageSwolf          *float64 `json:"average_swolf"`
	AvgStrokeDistance     *float64 `json:"avg_stroke_distance"`
	AvgStrokes            *float64 `json:"avg_strokes"`
	FastestSplit100       *float64 `json:"fastest_split_100"`
}

// Summary is a classified activity. It keeps a private copy of the payload
// it was built from so the record can be re-serialized with its source.
type Summary struct {
	Fields
	raw Raw
}

// Public returns a copy of the normalized fields without the raw payload.
// Writes through its pointers do not reach the summary.
func (s Summary) Public() Fields {
	return s.Fields.clone()
}

func (f Fields) clone() Fields {
	c := f
	c.ActivityName = clonePtr(f.ActivityName)
	c.BeginTimestamp = clonePtr(f.BeginTimestamp)
	c.EndTimeGMT = clonePtr(f.EndTimeGMT)

	c.Distance = clonePtr(f.Distance)
	c.Duration = clonePtr(f.Duration)
	c.MovingDuration = clonePtr(f.MovingDuration)
	c.ElapsedDuration = clonePtr(f.ElapsedDuration)
	c.AverageSpeed = clonePtr(f.AverageSpeed)
	c.MaxSpeed = clonePtr(f.MaxSpeed)
	c.AverageHR = clonePtr(f.AverageHR)
	c.MaxHR = clonePtr(f.MaxHR)
	c.Calories = clonePtr(f.Calories)
	c.BMRCalories = clonePtr(f.BMRCalories)
	c.ElevationGain = clonePtr(f.ElevationGain)
	c.ElevationLoss = clonePtr(f.ElevationLoss)
	c.AvgPower = clonePtr(f.AvgPower)

	c.ActivityTrainingLoad = clonePtr(f.ActivityTrainingLoad)
	c.AerobicTrainingEffect = clonePtr(f.AerobicTrainingEffect)
	c.AnaerobicTrainingEffect = clonePtr(f.AnaerobicTrainingEffect)

	if f.Cycling != nil {
		m := *f.Cycling
		m.AverageCadenceRPM = clonePtr(m.AverageCadenceRPM)
		m.MaxCadenceRPM = clonePtr(m.MaxCadenceRPM)
		m.NormalizedPower = clonePtr(m.NormalizedPower)
		m.MaxPower = clonePtr(m.MaxPower)
		m.EndLatitude = clonePtr(m.EndLatitude)
		m.EndLongitude = clonePtr(m.EndLongitude)
		m.ExcludeFromPowerCurveReports = clonePtr(m.ExcludeFromPowerCurveReports)
		c.Cycling = &m
	}
	if f.Running != nil {
		m := *f.Running
		m.AverageCadenceSPM = clonePtr(m.AverageCadenceSPM)
		m.AvgGradeAdjustedSpeed = clonePtr(m.AvgGradeAdjustedSpeed)
		m.AvgGroundContactTime = clonePtr(m.AvgGroundContactTime)
		m.AvgStrideLength = clonePtr(m.AvgStrideLength)
		m.AvgVerticalOscillation = clonePtr(m.AvgVerticalOscillation)
		m.AvgVerticalRatio = clonePtr(m.AvgVerticalRatio)
		m.Steps = clonePtr(m.Steps)
		c.Running = &m
	}
	if f.Swimming != nil {
		m := *f.Swimming
		m.PoolLength = clonePtr(m.PoolLength)
		m.ActiveLengths = clonePtr(m.ActiveLengths)
		m.TotalStrokes = clonePtr(m.TotalStrokes)
		m.AverageSwimCadenceSPM = clonePtr(m.AverageSwimCadenceSPM)
		m.AverageSwolf = clonePtr(m.AverageSwolf)
		m.AvgStrokeDistance = clonePtr(m.AvgStrokeDistance)
		m.AvgStrokes = clonePtr(m.AvgStrokes)
		m.FastestSplit100 = clonePtr(m.FastestSplit100)
		c.Swimming = &m
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Raw returns a deep copy of the payload the summary was classified from.
func (s Summary) Raw() Raw {
	return CopyRaw(s.raw)
}

// Begin reports the activity start instant, if one could be parsed.
func (s Summary) Begin() (time.Time, bool) {
	if s.BeginTimestamp == nil {
		return time.Time{}, false
	}
	return *s.BeginTimestamp, true
}

func (s Summary) MarshalJSON() ([]byte, error) {
	raw := s.raw
	if raw == nil {
		raw = Raw{}
	}
	return json.Marshal(struct {
		Fields
		Raw Raw `json:"raw"`
	}{s.Fields, raw})
}

// CopyRaw deep-copies nested maps and slices of a decoded payload.
func CopyRaw(raw Raw) Raw {
	if raw == nil {
		return nil
	}
	return copyValue(raw).(Raw)
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = copyValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
