package mongostore

import (
	"fmt"

	"github.com/invoicing/backend/internal/domain/record"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// deletedValues are the stored forms of a set soft-delete flag.
var deletedValues = bson.A{record.Deleted, true}

// FilterDocument translates f into a query document. It reports false when
// f cannot match anything.
func FilterDocument(f record.Filter) (bson.D, bool) {
	if f.IDs != nil && len(f.IDs) == 0 {
		return nil, false
	}
	q := bson.D{{Key: record.FieldOwner, Value: f.Owner}}
	if f.ID != "" {
		q = append(q, bson.E{Key: record.FieldID, Value: f.ID})
	}
	if f.IDs != nil {
		q = append(q, bson.E{Key: record.FieldID, Value: bson.M{"$in": f.IDs}})
	}
	if f.Deleted != nil {
		op := "$nin"
		if *f.Deleted {
			op = "$in"
		}
		q = append(q, bson.E{Key: record.FieldDeleted, Value: bson.M{op: deletedValues}})
	}
	return q, true
}

// Projection excludes the requested fields, or returns nil for none.
func Projection(o record.FindOptions) bson.M {
	if len(o.ExcludeFields) == 0 {
		return nil
	}
	p := make(bson.M, len(o.ExcludeFields))
	for _, f := range o.ExcludeFields {
		p[f] = 0
	}
	return p
}

// UpsertUpdate builds the $set / $setOnInsert update for op. Empty
// operators are left out because the server rejects them.
func UpsertUpdate(op record.UpsertOp) bson.M {
	update := bson.M{}
	if set := writable(op.Set); len(set) > 0 {
		update["$set"] = set
	}
	if onInsert := writable(op.SetOnInsert); len(onInsert) > 0 {
		update["$setOnInsert"] = onInsert
	}
	return update
}

// writable drops the handle, which MongoDB owns, and stores exact
// decimals as Decimal128.
func writable(doc record.Document) bson.M {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		if k == record.FieldHandle {
			continue
		}
		out[k] = toValue(v)
	}
	return out
}

func toMap(m map[string]any) bson.M {
	out := make(bson.M, len(m))
	for k, v := range m {
		out[k] = toValue(v)
	}
	return out
}

func toValue(v any) any {
	switch t := v.(type) {
	case record.Number:
		d, err := bson.ParseDecimal128(t.String())
		if err != nil {
			// Beyond 34 significant digits; keep the exact text.
			return t.String()
		}
		return d
	case record.Document:
		return toMap(t)
	case map[string]any:
		return toMap(t)
	case []any:
		out := make(bson.A, len(t))
		for i := range t {
			out[i] = toValue(t[i])
		}
		return out
	default:
		return v
	}
}

// FromBSON converts a decoded document into the shapes the services use.
func FromBSON(m bson.M) record.Document {
	doc := make(record.Document, len(m))
	for k, v := range m {
		if k == record.FieldHandle {
			doc[k] = handleString(v)
			continue
		}
		doc[k] = fromValue(v)
	}
	return doc
}

func fromValue(v any) any {
	switch t := v.(type) {
	case bson.DateTime:
		return t.Time().UTC()
	case bson.ObjectID:
		return t.Hex()
	case int32:
		return int64(t)
	case bson.M:
		return map[string]any(FromBSON(t))
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = fromValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(t))
		for i := range t {
			out[i] = fromValue(t[i])
		}
		return out
	case bson.Decimal128:
		n, err := record.ParseNumber(t.String())
		if err != nil {
			return t.String()
		}
		return n
	default:
		return v
	}
}

func handleString(v any) string {
	switch t := v.(type) {
	case bson.ObjectID:
		return t.Hex()
	case string:
		return t
	default:
		return fmt.Sprint(v)
	}
}
