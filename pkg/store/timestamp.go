package store

import (
	"time"
)

// NormalizeTime converts a backend-native timestamp to a time.Time.
//
// It accepts time.Time, *time.Time, anything exposing Time() time.Time (BSON DateTime,
// protobuf-style timestamps), RFC 3339 strings, and Unix milliseconds as int64 or float64.
// Values it does not recognize, nil included, normalize to the zero time.
func NormalizeTime(v any) time.Time {
	switch t := v.(type) {
	case nil:
		return time.Time{}
	case time.Time:
		return t
	case *time.Time:
		if t == nil {
			return time.Time{}
		}
		return *t
	case interface{ Time() time.Time }:
		return t.Time()
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed
		}
		return time.Time{}
	case int64:
		return time.UnixMilli(t)
	case float64:
		return time.UnixMilli(int64(t))
	default:
		return time.Time{}
	}
}
