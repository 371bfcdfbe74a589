package model

import (
	"math"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// dateLayouts are the timestamp shapes accepted from the store.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// CoerceAmount converts a loosely typed amount to a non-negative float. The
// second result is false when the input was present but unusable; absent
// values (nil, blank) coerce to zero and count as well-formed.
func CoerceAmount(v any) (float64, bool) {
	if v == nil {
		return 0, true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, true
		}
		s = strings.NewReplacer(",", "", "$", "").Replace(s)
		v = s
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// CoerceScore converts a loosely typed health score. Unusable values become
// zero, which the engine treats as unscored.
func CoerceScore(v any) (float64, bool) {
	if v == nil {
		return 0, true
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return 0, true
	}
	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, false
	}
	return f, true
}

// CoerceTime parses a loosely typed timestamp. Absent values return the zero
// time and true; unparsable values return the zero time and false.
func CoerceTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, true
	case time.Time:
		return t.UTC(), true
	case int64:
		if t <= 0 {
			return time.Time{}, true
		}
		return time.Unix(t, 0).UTC(), true
	}
	s := strings.TrimSpace(cast.ToString(v))
	if s == "" {
		return time.Time{}, true
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}
