package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Kind describes one entity type: where its records live and which domain
// fields are accepted from clients.
type Kind struct {
	// Name is the singular name used in logs and metrics (e.g. "associate")
	Name string
	// Collection is the storage collection (e.g. "associates")
	Collection string
	// BatchKey is the JSON key carrying the sync batch (e.g. "associates")
	BatchKey string

	fields  []string
	extract func(data []byte) (Document, error)
}

var valueType = reflect.TypeFor[Value]()

// DefineKind builds a Kind whose allow-list is the struct T. Every exported
// field of T must be a Value with a json tag naming the stored field.
// DefineKind panics if T does not follow that shape; kinds are declared at
// package init.
func DefineKind[T any](name, collection, batchKey string) Kind {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("record: kind %s: %s is not a struct", name, typ))
	}

	fields := make([]string, 0, typ.NumField())
	index := make([]int, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Type != valueType {
			panic(fmt.Sprintf("record: kind %s: field %s must be record.Value", name, f.Name))
		}
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == "" || tag == "-" {
			panic(fmt.Sprintf("record: kind %s: field %s needs a json tag", name, f.Name))
		}
		if isReserved(tag) {
			panic(fmt.Sprintf("record: kind %s: field %s is reserved", name, tag))
		}
		fields = append(fields, tag)
		index = append(index, i)
	}

	return Kind{
		Name:       name,
		Collection: collection,
		BatchKey:   batchKey,
		fields:     fields,
		extract: func(data []byte) (Document, error) {
			var payload T
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, err
			}
			rv := reflect.ValueOf(payload)
			doc := make(Document, len(fields))
			for n, i := range index {
				doc[fields[n]] = rv.Field(i).Interface().(Value).Any()
			}
			return doc, nil
		},
	}
}

func isReserved(field string) bool {
	switch field {
	case FieldID, FieldOwner, FieldCreatedAt, FieldUpdatedAt, FieldDeleted, FieldSynced, FieldHandle:
		return true
	}
	return false
}

// Fields returns the allow-listed domain field names in declaration order.
func (k Kind) Fields() []string {
	out := make([]string, len(k.fields))
	copy(out, k.fields)
	return out
}

// Extract decodes a client payload through the allow-list. Unknown fields are
// dropped. Every allow-listed field is present in the result; absent ones are
// nil so that writing the result replaces the stored domain fields wholesale.
func (k Kind) Extract(data json.RawMessage) (Document, error) {
	if !isObject(data) {
		return nil, shared.NewValidationError("%s data must be an object", k.Name)
	}
	doc, err := k.extract(data)
	if err != nil {
		return nil, shared.NewValidationError("invalid %s data: %v", k.Name, err)
	}
	return doc, nil
}

func isObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
