package util

import (
	"strconv"
	"strings"
	"time"
)

// ParseIntLoose parses feed numerics that may arrive as numbers or as
// strings with thousand separators. Junk falls back to the default so
// unit totals stay additive.
func ParseIntLoose(v any, fallback int) int {
	switch t := v.(type) {
	case nil:
		return fallback
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		return int(f)
	default:
		return fallback
	}
}

func ParseFloatLoose(v any, fallback float64) float64 {
	switch t := v.(type) {
	case nil:
		return fallback
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(t), ",", "")
		if s == "" {
			return fallback
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fallback
		}
		return f
	default:
		return fallback
	}
}

// FloatPtrLoose is ParseFloatLoose with nil for absent/unparseable input,
// for fields where zero is not a safe default (coordinates).
func FloatPtrLoose(v any) *float64 {
	switch t := v.(type) {
	case float64:
		return &t
	case int:
		f := float64(t)
		return &f
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// EpochMsToDate converts a feed epoch-millisecond timestamp to an ISO
// date string. Zero, empty and unparseable values become "".
func EpochMsToDate(v any) string {
	var ms int64
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		ms = int64(t)
	case int:
		ms = int64(t)
	case int64:
		ms = t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return ""
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return ""
		}
		ms = parsed
	default:
		return ""
	}
	if ms == 0 {
		return ""
	}
	return time.UnixMilli(ms).UTC().Format("2006-01-02")
}

// MinDate and MaxDate compare ISO dates lexically, treating "" as absent.
func MinDate(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" || a < b {
		return a
	}
	return b
}

func MaxDate(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" || a > b {
		return a
	}
	return b
}
