package ingestion

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Resolution order for the fields that may live at the top level or inside
// "properties". Top-level keys always win.
var (
	typeKeys        = []string{"type"}
	timeKeys        = []string{"time", "#time", "timestamp"}
	userKeys        = []string{"distinct_id", "#distinct_id", "user_id", "#account_id"}
	eventKeys       = []string{"event", "event_name", "#event_name"}
	nestedEventKeys = []string{"event_name", "event"}
)

// propertiesKey names the nested object that carries event properties.
const propertiesKey = "properties"

// epochMillisThreshold separates epoch seconds from epoch milliseconds. 1e11
// seconds is in the year 5138; 1e11 milliseconds is March 1973.
const epochMillisThreshold = 1e11

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// ResolveType returns the record type tag.
func ResolveType(fields, props map[string]any) (string, bool) {
	return resolveString(fields, props, typeKeys, typeKeys)
}

// ResolveUserID returns the user identifier. Numeric ids are rendered without
// an exponent so 12345 and "12345" name the same user.
func ResolveUserID(fields, props map[string]any) (string, bool) {
	return resolveString(fields, props, userKeys, userKeys)
}

// ResolveEventName returns the event name of a track record.
func ResolveEventName(fields, props map[string]any) (string, bool) {
	return resolveString(fields, props, eventKeys, nestedEventKeys)
}

// ResolveTime returns the raw time value, whether one was found at all, and the
// parsed Timestamp (invalid when the value could not be interpreted).
func ResolveTime(fields, props map[string]any) (any, bool, Timestamp) {
	raw, ok := lookup(fields, props, timeKeys, timeKeys, present)
	if !ok {
		return nil, false, Timestamp{}
	}

	return raw, true, ParseTimestamp(raw)
}

// ParseTimestamp interprets a logged time value. Numbers (and numeric strings)
// are epoch seconds below 1e11 and epoch milliseconds otherwise; strings may also
// be RFC 3339 or "2006-01-02 15:04:05[.000]" in UTC.
func ParseTimestamp(v any) Timestamp {
	switch value := v.(type) {
	case float64:
		return fromEpoch(value)
	case int64:
		return fromEpoch(float64(value))
	case int:
		return fromEpoch(float64(value))
	case string:
		s := strings.TrimSpace(value)
		if s == "" {
			return Timestamp{}
		}

		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(f)
		}

		for _, layout := range timeLayouts {
			if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
				return NewTimestamp(t.UTC())
			}
		}
	}

	return Timestamp{}
}

// KindOf names the JSON kind of a decoded value: string, number, boolean, list,
// object or null.
func KindOf(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64, float32, int, int64, int32:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "list"
	case map[string]any:
		return "object"
	default:
		return "unknown"
	}
}

func fromEpoch(f float64) Timestamp {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Timestamp{}
	}

	if math.Abs(f) >= epochMillisThreshold {
		ms := int64(f)

		return NewTimestamp(time.UnixMilli(ms).UTC())
	}

	sec, frac := math.Modf(f)

	return NewTimestamp(time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC())
}

func resolveString(fields, props map[string]any, top, nested []string) (string, bool) {
	raw, ok := lookup(fields, props, top, nested, isScalar)
	if !ok {
		return "", false
	}

	switch value := raw.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(value), true
	default:
		return "", false
	}
}

// lookup returns the first value accept takes, walking top-level keys before
// nested ones.
func lookup(fields, props map[string]any, top, nested []string, accept func(any) bool) (any, bool) {
	for _, key := range top {
		if v, ok := fields[key]; ok && accept(v) {
			return v, true
		}
	}

	for _, key := range nested {
		if v, ok := props[key]; ok && accept(v) {
			return v, true
		}
	}

	return nil, false
}

// present treats null and empty or blank strings as absent.
func present(v any) bool {
	if v == nil {
		return false
	}

	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}

	return true
}

// isScalar accepts present strings, numbers and booleans. Lists and objects
// under an identifier key are skipped so a later key can still resolve.
func isScalar(v any) bool {
	switch v.(type) {
	case string, float64, bool:
		return present(v)
	default:
		return false
	}
}

func isTrackType(t string) bool {
	return strings.EqualFold(strings.TrimSpace(t), RecordTypeTrack)
}
