package runtime

import (
	"math"

	"github.com/wippyai/scripthost/boundary"
)

func asString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	case boundary.String:
		if !s.Valid() {
			return "", false
		}
		return s.String(), true
	}
	return "", false
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case boundary.Bool32:
		return b.Bool(), true
	}
	return false, false
}

func asRune(v any) (rune, bool) {
	switch r := v.(type) {
	case rune:
		return r, true
	case string:
		runes := []rune(r)
		if len(runes) == 1 {
			return runes[0], true
		}
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case float32:
		return float64(f), true
	}
	if i, ok := asInt(v); ok {
		return float64(i), true
	}
	return 0, false
}

// asInt widens any integer type. Unsigned values above MaxInt64 don't fit.
func asInt(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), uint64(n) <= math.MaxInt64
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), n <= math.MaxInt64
	case boundary.TypeRef:
		return int64(n), true
	}
	return 0, false
}

func signed(v any, lo, hi int64, want string) (int64, error) {
	n, ok := asInt(v)
	if !ok || n < lo || n > hi {
		return 0, mismatch(v, want)
	}
	return n, nil
}

func unsigned(v any, hi uint64, want string) (uint64, error) {
	switch n := v.(type) {
	case uint64:
		if n > hi {
			return 0, mismatch(v, want)
		}
		return n, nil
	case uint:
		if uint64(n) > hi {
			return 0, mismatch(v, want)
		}
		return uint64(n), nil
	case boundary.Handle:
		if uint64(n) > hi {
			return 0, mismatch(v, want)
		}
		return uint64(n), nil
	}
	n, ok := asInt(v)
	if !ok || n < 0 || uint64(n) > hi {
		return 0, mismatch(v, want)
	}
	return uint64(n), nil
}
