package activity

import "time"

// extractor fills the sport block of a summary.
type extractor func(raw Raw, f *Fields)

// sportRules is the closed set of sport-specific rule sets. Generic
// activities carry base fields only.
var sportRules = map[Sport]extractor{
	SportCycling:  extractCycling,
	SportRunning:  extractRunning,
	SportSwimming: extractSwimming,
}

var idAliases = []string{"activityId", "activity_id", "id"}

// Classify normalizes a raw payload. It never fails: fields that cannot be
// read are left nil and an unrecognized type yields a generic summary.
func Classify(raw Raw) Summary {
	key := NormalizeTypeKey(typeKey(raw))
	if key == "" {
		key = UnknownType
	}
	sport := SportFor(key)

	f := Fields{
		ActivityID: activityID(raw),
		TypeKey:    key,
		Sport:      sport,
	}
	extractBase(raw, &f)
	if rule, ok := sportRules[sport]; ok {
		rule(raw, &f)
	}
	return Summary{Fields: f, raw: CopyRaw(raw)}
}

// TypeKeyOf returns the normalized type key of a payload without building a
// full summary.
func TypeKeyOf(raw Raw) string {
	if key := NormalizeTypeKey(typeKey(raw)); key != "" {
		return key
	}
	return UnknownType
}

func typeKey(raw Raw) string {
	switch at := raw["activityType"].(type) {
	case map[string]any:
		for _, k := range []string{"typeKey", "typeName", "typeId"} {
			if v, ok := at[k]; ok && v != nil {
				if s, ok := v.(string); ok {
					if s != "" {
						return s
					}
					continue
				}
				if id, ok := formatID(v); ok {
					return string(id)
				}
			}
		}
	case string:
		if at != "" {
			return at
		}
	}
	if s, ok := raw["typeKey"].(string); ok {
		return s
	}
	return ""
}

func activityID(raw Raw) ID {
	for _, key := range idAliases {
		if id, ok := formatID(raw[key]); ok {
			return id
		}
	}
	return ""
}

func beginTimestamp(raw Raw) *time.Time {
	if t, ok := epochMillis(raw["beginTimestamp"]); ok {
		return &t
	}
	for _, key := range []string{"startTimeGMT", "startTimeLocal"} {
		s, ok := raw[key].(string)
		if !ok {
			continue
		}
		if t, ok := ParseTimestamp(s); ok {
			return &t
		}
	}
	return nil
}

func extractBase(raw Raw, f *Fields) {
	f.ActivityName = firstString(raw, "activityName", "name")
	f.BeginTimestamp = beginTimestamp(raw)
	f.EndTimeGMT = firstString(raw, "endTimeGMT")

	f.Distance = firstMeasure(raw, "distance", "totalDistance")
	f.Duration = firstMeasure(raw, "duration", "elapsedDuration")
	f.MovingDuration = firstMeasure(raw, "movingDuration")
	f.ElapsedDuration = firstMeasure(raw, "elapsedDuration")
	f.AverageSpeed = firstMeasure(raw, "averageSpeed", "avgSpeed")
	f.MaxSpeed = firstMeasure(raw, "maxSpeed")
	f.AverageHR = firstCount(raw, "averageHR", "averageHr", "avgHr")
	f.MaxHR = firstCount(raw, "maxHR", "maxHr")
	f.Calories = firstMeasure(raw, "calories", "totalCalories")
	f.BMRCalories = firstMeasure(raw, "bmrCalories")
	f.ElevationGain = firstMeasure(raw, "elevationGain", "totalElevationGain")
	f.ElevationLoss = firstMeasure(raw, "elevationLoss", "totalElevationLoss")
	f.AvgPower = firstFloat(raw, "avgPower", "averagePower")

	f.ActivityTrainingLoad = firstFloat(raw, "activityTrainingLoad")
	f.AerobicTrainingEffect = firstFloat(raw, "aerobicTrainingEffect")
	f.AnaerobicTrainingEffect = firstFloat(raw, "anaerobicTrainingEffect")
}

func extractCycling(raw Raw, f *Fields) {
	f.Cycling = &CyclingMetrics{
		AverageCadenceRPM:            firstFloat(raw, "averageBikingCadenceInRevPerMinute", "avgBikeCadence"),
		MaxCadenceRPM:                firstFloat(raw, "maxBikingCadenceInRevPerMinute", "maxBikeCadence"),
		NormalizedPower:              firstFloat(raw, "normPower", "normalizedPower"),
		MaxPower:                     firstFloat(raw, "maxPower"),
		EndLatitude:                  firstFloat(raw, "endLatitude"),
		EndLongitude:                 firstFloat(raw, "endLongitude"),
		ExcludeFromPowerCurveReports: firstBool(raw, "excludeFromPowerCurveReports"),
	}
}

func extractRunning(raw Raw, f *Fields) {
	f.Running = &RunningMetrics{
		AverageCadenceSPM:      firstFloat(raw, "averageRunningCadenceInStepsPerMinute", "avgRunCadence"),
		AvgGradeAdjustedSpeed:  firstFloat(raw, "avgGradeAdjustedSpeed"),
		AvgGroundContactTime:   firstFloat(raw, "avgGroundContactTime"),
		AvgStrideLength:        firstFloat(raw, "avgStrideLength"),
		AvgVerticalOscillation: firstFloat(raw, "avgVerticalOscillation"),
		AvgVerticalRatio:       firstFloat(raw, "avgVerticalRatio"),
		Steps:                  firstCount(raw, "steps"),
	}
}

func extractSwimming(raw Raw, f *Fields) {
	f.Swimming = &SwimmingMetrics{
		PoolLength:            firstFloat(raw, "poolLength"),
		ActiveLengths:         firstCount(raw, "activeLengths"),
		TotalStrokes:          firstCount(raw, "totalNumberOfStrokes", "strokes"),
		AverageSwimCadenceSPM: firstFloat(raw, "averageSwimCadenceInStrokesPerMinute", "avgSwimCadence"),
		AverageSwolf:          firstFloat(raw, "averageSwolf", "avgSwolf"),
		AvgStrokeDistance:     firstFloat(raw, "avgStrokeDistance"),
		AvgStrokes:            firstFloat(raw, "avgStrokes"),
		FastestSplit100:       firstFloat(raw, "fastestSplit_100"),
	}
}
