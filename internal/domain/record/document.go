// Package record defines the schemaless record model shared by every entity
// kind, and the Record Store abstraction the services write through.
package record

import (
	"time"
)

// Storage names of the fields every record carries regardless of kind.
const (
	FieldID        = "id"
	FieldOwner     = "userEmail"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeleted   = "deleted"
	FieldSynced    = "synced"
	// FieldHandle is the storage-native identifier. It is distinct from FieldID.
	FieldHandle = "_id"
)

// Flag values as stored.
const (
	NotSynced = 0
	Active    = 0
	Deleted   = 1
)

// Document is a stored record.
type Document map[string]any

// ID returns the external identifier, or "" when absent.
func (d Document) ID() string {
	s, _ := d[FieldID].(string)
	return s
}

// Owner returns the owning account, or "" when absent.
func (d Document) Owner() string {
	s, _ := d[FieldOwner].(string)
	return s
}

// IsDeleted reports whether the soft-delete flag is set.
func (d Document) IsDeleted() bool {
	return Truthy(d[FieldDeleted])
}

// UpdatedAt returns the stored updatedAt, if it can be read as a time.
func (d Document) UpdatedAt() (time.Time, bool) {
	return TimeValue(d[FieldUpdatedAt])
}

// CreatedAt returns the stored createdAt, if it can be read as a time.
func (d Document) CreatedAt() (time.Time, bool) {
	return TimeValue(d[FieldCreatedAt])
}

// Clone returns a deep copy of d. Nested maps and slices are copied too.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

// Merge copies every key of src into d, overwriting existing keys.
func (d Document) Merge(src Document) {
	for k, v := range src {
		d[k] = cloneValue(v)
	}
}

// Without returns a copy of d with the named fields removed.
func (d Document) Without(fields ...string) Document {
	out := d.Clone()
	for _, f := range fields {
		delete(out, f)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Document:
		return t.Clone()
	case map[string]any:
		return map[string]any(Document(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}

// Truthy interprets a stored flag. Booleans, numbers and the strings
// "true"/"1" are understood. Anything else is false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case Number:
		return !t.d.IsZero()
	case string:
		return t == "true" || t == "1"
	default:
		return false
	}
}

// TimeValue reads a stored timestamp. Stores that round-trip through JSON
// hand back RFC3339 strings.
func TimeValue(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		ts, err := parseTimeString(t)
		if err != nil {
			return time.Time{}, false
		}
		return ts, true
	default:
		return time.Time{}, false
	}
}

// Normalize rewrites values read back from a JSON-backed store into the
// shapes the services produce: audit timestamps become time.Time and
// integral floats become int64.
func Normalize(d Document) Document {
	for k, v := range d {
		switch k {
		case FieldCreatedAt, FieldUpdatedAt:
			if ts, ok := TimeValue(v); ok {
				d[k] = ts
				continue
			}
		}
		d[k] = normalizeFloat(v)
	}
	return d
}

func normalizeFloat(v any) any {
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return int64(t)
		}
		return t
	case map[string]any:
		for k, inner := range t {
			t[k] = normalizeFloat(inner)
		}
		return t
	case []any:
		for i := range t {
			t[i] = normalizeFloat(t[i])
		}
		return t
	default:
		return v
	}
}
