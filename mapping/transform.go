package mapping

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flowenginer/meta-hub/jsonval"
)

var nonDigit = regexp.MustCompile(`[^0-9]`)

// applyTransform runs the named closed-set transform against v. A type
// mismatch or unparseable value yields jsonval.Absent ("skip"), never an
// error — the engine's error mode reserves failures for structural problems
// in the Mapping itself, not for bad field data. The array transforms are
// the exception: they return a non-array value unchanged.
func applyTransform(name Transform, v any) any {
	switch name {
	case TransformUppercase:
		s, ok := v.(string)
		if !ok {
			return jsonval.Absent
		}
		return strings.ToUpper(s)
	case TransformLowercase:
		s, ok := v.(string)
		if !ok {
			return jsonval.Absent
		}
		return strings.ToLower(s)
	case TransformTrim:
		s, ok := v.(string)
		if !ok {
			return jsonval.Absent
		}
		return strings.TrimSpace(s)
	case TransformNumber:
		return toNumber(v)
	case TransformBoolean:
		return toBoolean(v)
	case TransformString:
		s := jsonval.String(v)
		if s == "" {
			return jsonval.Absent
		}
		return s
	case TransformDateISO:
		return toDateISO(v)
	case TransformJSONParse:
		return jsonParse(v)
	case TransformJSONStringify:
		return jsonStringify(v)
	case TransformArrayFirst:
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		if len(arr) == 0 {
			return jsonval.Absent
		}
		return arr[0]
	case TransformArrayLast:
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		if len(arr) == 0 {
			return jsonval.Absent
		}
		return arr[len(arr)-1]
	case TransformArrayJoin:
		arr, ok := v.([]any)
		if !ok {
			return v
		}
		parts := make([]string, len(arr))
		for i, e := range arr {
			parts[i] = jsonval.String(e)
		}
		return strings.Join(parts, ",")
	case TransformPhoneClean:
		s, ok := v.(string)
		if !ok {
			return jsonval.Absent
		}
		return cleanPhone(s)
	case TransformEmailLower:
		s, ok := v.(string)
		if !ok {
			return jsonval.Absent
		}
		return strings.ToLower(strings.TrimSpace(s))
	default:
		return jsonval.Absent
	}
}

func toNumber(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) {
			return jsonval.Absent
		}
		return t
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return jsonval.Absent
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return jsonval.Absent
		}
		return f
	case bool:
		if t {
			return float64(1)
		}
		return float64(0)
	default:
		return jsonval.Absent
	}
}

func toBoolean(v any) any {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		s := strings.ToLower(strings.TrimSpace(t))
		switch s {
		case "":
			return jsonval.Absent
		case "true", "1", "yes", "y":
			return true
		case "false", "0", "no", "n":
			return false
		default:
			return jsonval.Absent
		}
	default:
		return jsonval.Absent
	}
}

func toDateISO(v any) any {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return jsonval.Absent
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts.UTC().Format(time.RFC3339)
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return unixToISO(n)
		}
		return jsonval.Absent
	case float64:
		return unixToISO(int64(t))
	default:
		return jsonval.Absent
	}
}

// unixToISO heuristically distinguishes unix seconds from unix
// milliseconds: anything with a magnitude consistent with post-2001
// millisecond timestamps (>= 1e12) is treated as milliseconds.
func unixToISO(n int64) any {
	var ts time.Time
	if n >= 1_000_000_000_000 || n <= -1_000_000_000_000 {
		ts = time.UnixMilli(n)
	} else {
		ts = time.Unix(n, 0)
	}
	return ts.UTC().Format(time.RFC3339)
}

func jsonParse(v any) any {
	s, ok := v.(string)
	if !ok {
		return jsonval.Absent
	}
	var parsed any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return jsonval.Absent
	}
	return parsed
}

func jsonStringify(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return jsonval.Absent
	}
	return string(b)
}

func cleanPhone(s string) string {
	hasPlus := strings.HasPrefix(strings.TrimSpace(s), "+")
	digits := nonDigit.ReplaceAllString(s, "")
	if hasPlus {
		return "+" + digits
	}
	return digits
}
