package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Value holds one client-supplied domain field. Any JSON value is accepted;
// numbers become int64 when integral and in range, and Number otherwise.
type Value struct {
	v   any
	set bool
}

// NewValue wraps v as a set Value.
func NewValue(v any) Value {
	return Value{v: v, set: true}
}

// Any returns the wrapped value, nil when absent or null.
func (v Value) Any() any {
	return v.v
}

// IsSet reports whether the field was present in the payload.
func (v Value) IsSet() bool {
	return v.set
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	normalized, err := normalizeNumbers(raw)
	if err != nil {
		return err
	}
	v.v = normalized
	v.set = true
	return nil
}

// MarshalJSON implements json.Marshaler
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.v)
}

func normalizeNumbers(raw any) (any, error) {
	switch t := raw.(type) {
	case json.Number:
		return numberValue(t)
	case map[string]any:
		for k, inner := range t {
			n, err := normalizeNumbers(inner)
			if err != nil {
				return nil, err
			}
			t[k] = n
		}
		return t, nil
	case []any:
		for i := range t {
			n, err := normalizeNumbers(t[i])
			if err != nil {
				return nil, err
			}
			t[i] = n
		}
		return t, nil
	default:
		return raw, nil
	}
}

func numberValue(n json.Number) (any, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", n.String(), err)
	}
	if d.IsInteger() && d.Cmp(decimal.NewFromInt(math.MaxInt64)) <= 0 && d.Cmp(decimal.NewFromInt(math.MinInt64)) >= 0 {
		return d.IntPart(), nil
	}
	return Number{d: d}, nil
}

// Number is an exact decimal. It accepts a JSON number or a numeric string
// and marshals as a bare JSON number.
type Number struct {
	d decimal.Decimal
}

// NewNumber wraps d.
func NewNumber(d decimal.Decimal) Number {
	return Number{d: d}
}

// ParseNumber parses a decimal literal such as "12.50" or "1e-3".
func ParseNumber(s string) (Number, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Number{d: d}, nil
}

// Decimal returns the wrapped value.
func (n Number) Decimal() decimal.Decimal {
	return n.d
}

// String returns the exact decimal text.
func (n Number) String() string {
	return n.d.String()
}

// MarshalJSON implements json.Marshaler
func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.d.String()), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if string(trimmed) == "null" {
		return nil
	}
	text := string(trimmed)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
	} else if !json.Valid(trimmed) {
		return fmt.Errorf("invalid number %s", text)
	}
	parsed, err := ParseNumber(text)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Timestamp is a client-supplied instant. It accepts an RFC3339 style string
// or epoch milliseconds. Values are kept in UTC at millisecond precision and
// must fall within years 1 to 9999.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("empty timestamp")
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		ts, err := parseTimeString(s)
		if err != nil {
			return err
		}
		t.Time = ts
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return fmt.Errorf("timestamp must be a string or epoch milliseconds")
		}
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return fmt.Errorf("invalid timestamp %q", n.String())
		}
		if d.LessThan(minEpochMilli) || d.GreaterThan(maxEpochMilli) {
			return fmt.Errorf("timestamp %s is outside years 1 to 9999", n.String())
		}
		t.Time = time.UnixMilli(d.IntPart()).UTC()
		return nil
	}
}

// MarshalJSON implements json.Marshaler
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time)
}

var (
	minEpochMilli = decimal.NewFromInt(time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli())
	maxEpochMilli = decimal.NewFromInt(time.Date(9999, 12, 31, 23, 59, 59, 999e6, time.UTC).UnixMilli())
)

// Strings without a zone are read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimeString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q", s)
}

// Flag is a client-supplied boolean that some clients send as 0/1.
type Flag int

// UnmarshalJSON implements json.Unmarshaler
func (f *Flag) UnmarshalJSON(data []byte) error {
	switch s := string(bytes.TrimSpace(data)); s {
	case "null", "false", "0", `"false"`, `"0"`, `""`:
		*f = 0
		return nil
	case "true", "1", `"true"`, `"1"`:
		*f = 1
		return nil
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid flag %s", s)
		}
		if n != 0 {
			*f = 1
		} else {
			*f = 0
		}
		return nil
	}
}

// Bool reports whether the flag is set.
func (f Flag) Bool() bool {
	return f != 0
}

// DecodeDocument parses a JSON object read back from a store. Numbers get
// the same normalization as Value and audit timestamps become time.Time.
func DecodeDocument(data []byte) (Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if raw == nil {
		return Document{}, nil
	}
	if _, err := normalizeNumbers(raw); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return Normalize(Document(raw)), nil
}
