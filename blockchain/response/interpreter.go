// Package response interprets registry query answers. A query for a product
// that was never registered is a normal outcome, so nothing here returns an
// error: every input maps to a defined result.
package response

import (
	"encoding/json"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Sentinel renderings returned by FormatTimestamp.
const (
	UnknownProduct         = "unknown product"
	InvalidResponse        = "invalid response"
	TimestampNotRecognized = "product time stamp not recognized"
)

// Layout is the rendering of a registration instant.
const Layout = "2006-01-02 15:04:05 MST"

// Outcome classifies a query answer.
type Outcome int

const (
	OutcomeKnown Outcome = iota
	OutcomeUnknown
	OutcomeInvalid
	OutcomeUnrecognized
)

func (o Outcome) String() string {
	switch o {
	case OutcomeKnown:
		return "known"
	case OutcomeUnknown:
		return "unknown"
	case OutcomeInvalid:
		return "invalid"
	case OutcomeUnrecognized:
		return "unrecognized"
	default:
		return "outcome(" + strconv.Itoa(int(o)) + ")"
	}
}

// Timestamp extracts the registration time (Unix seconds) at index 1 of a
// positional (hash, timestamp) answer.
func Timestamp(resp []interface{}) (int64, Outcome) {
	if len(resp) < 2 {
		return 0, OutcomeInvalid
	}
	ts, ok := parseInt(resp[1])
	if !ok || ts < 0 {
		return 0, OutcomeUnrecognized
	}
	if ts == 0 {
		return 0, OutcomeUnknown
	}
	return ts, OutcomeKnown
}

// IsKnown reports whether resp carries a registration time greater than zero.
func IsKnown(resp []interface{}) bool {
	_, outcome := Timestamp(resp)
	return outcome == OutcomeKnown
}

// FormatTimestamp renders the registration time in UTC, or one of the
// sentinel strings.
func FormatTimestamp(resp []interface{}) string {
	return FormatTimestampIn(resp, time.UTC)
}

// FormatTimestampIn is FormatTimestamp rendering in loc.
func FormatTimestampIn(resp []interface{}, loc *time.Location) string {
	ts, outcome := Timestamp(resp)
	switch outcome {
	case OutcomeInvalid:
		return InvalidResponse
	case OutcomeUnrecognized:
		return TimestampNotRecognized
	case OutcomeUnknown:
		return UnknownProduct
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.Unix(ts, 0).In(loc).Format(Layout)
}

func parseInt(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case nil:
		return 0, false
	case *big.Int:
		if n == nil || !n.IsInt64() {
			return 0, false
		}
		return n.Int64(), true
	case big.Int:
		if !n.IsInt64() {
			return 0, false
		}
		return n.Int64(), true
	case string:
		return parseString(n)
	case json.Number:
		return parseString(n.String())
	case float64:
		return parseFloat(n)
	case float32:
		return parseFloat(float64(n))
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// parseString accepts a whole decimal or 0x-hex integer only. A numeric
// prefix followed by other text ("17abc") is rejected rather than read as 17.
func parseString(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok || !n.IsInt64() {
		return 0, false
	}
	return n.Int64(), true
}

func parseFloat(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}
