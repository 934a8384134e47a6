// Package activity turns raw Garmin Connect activity payloads into typed,
// normalized summaries.
package activity

import (
	"sort"
	"strings"
)

// ID is the upstream activity identifier in its string form.
// Integer ids are rendered in base 10.
type ID string

// Sport selects which extraction rule set applies to a summary.
type Sport string

const (
	SportCycling  Sport = "cycling"
	SportRunning  Sport = "running"
	SportSwimming Sport = "swimming"
	SportGeneric  Sport = "generic"
)

// UnknownType is reported when a payload carries no usable activity type.
const UnknownType = "unknown"

// Raw is an upstream payload exactly as decoded from the wire.
type Raw = map[string]any

// sportFamilies maps Garmin type keys to the sport whose rules apply.
// Keys that are not listed fall back to SportGeneric.
var sportFamilies = map[string]Sport{
	"cycling":         SportCycling,
	"biking":          SportCycling,
	"road_biking":     SportCycling,
	"virtual_ride":    SportCycling,
	"indoor_cycling":  SportCycling,
	"mountain_biking": SportCycling,
	"gravel_cycling":  SportCycling,
	"cyclocross":      SportCycling,
	"track_cycling":   SportCycling,
	"e_bike_fitness":  SportCycling,
	"e_bike_mountain": SportCycling,

	"running":           SportRunning,
	"trail_running":     SportRunning,
	"treadmill_running": SportRunning,
	"track_running":     SportRunning,
	"street_running":    SportRunning,
	"indoor_running":    SportRunning,
	"virtual_run":       SportRunning,
	"ultra_run":         SportRunning,

	"swimming":            SportSwimming,
	"lap_swimming":        SportSwimming,
	"open_water_swimming": SportSwimming,
}

// SportFor returns the sport family for a type key. The key is normalized
// first, so callers may pass upstream values directly.
func SportFor(typeKey string) Sport {
	if sport, ok := sportFamilies[NormalizeTypeKey(typeKey)]; ok {
		return sport
	}
	return SportGeneric
}

// TypeKeys lists the known type keys of a sport family, sorted.
func TypeKeys(sport Sport) []string {
	var keys []string
	for key, s := range sportFamilies {
		if s == sport {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

// NormalizeTypeKey trims and lower-cases an activity type key.
func NormalizeTypeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

// ParseTypes normalizes a type filter. Comma separated entries are split,
// blanks dropped and duplicates removed while keeping the first-seen order.
func ParseTypes(values ...string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			key := NormalizeTypeKey(part)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, key)
		}
	}
	return out
}
