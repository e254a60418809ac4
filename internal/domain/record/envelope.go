package record

import (
	"encoding/json"
	"strings"

	"github.com/invoicing/backend/internal/domain/shared"
)

// Envelope carries the identity and audit fields of a client snapshot.
type Envelope struct {
	ID        string
	CreatedAt *Timestamp
	UpdatedAt *Timestamp
	Deleted   *Flag
}

// DecodeEnvelope reads the identity and audit fields of one snapshot.
// The id must be a non-empty string.
func DecodeEnvelope(data json.RawMessage) (Envelope, error) {
	if !isObject(data) {
		return Envelope{}, shared.NewValidationError("record must be an object")
	}
	var raw struct {
		ID        json.RawMessage `json:"id"`
		CreatedAt *Timestamp      `json:"createdAt"`
		UpdatedAt *Timestamp      `json:"updatedAt"`
		Deleted   *Flag           `json:"deleted"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, shared.NewValidationError("invalid record: %v", err)
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		ID:        id,
		CreatedAt: raw.CreatedAt,
		UpdatedAt: raw.UpdatedAt,
		Deleted:   raw.Deleted,
	}, nil
}

// PayloadID returns the non-empty string id of a payload.
func PayloadID(data json.RawMessage) (string, error) {
	if !isObject(data) {
		return "", shared.NewValidationError("data must be an object")
	}
	var raw struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return "", shared.NewValidationError("invalid data: %v", err)
	}
	return decodeID(raw.ID)
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", shared.ErrMissingID
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", shared.NewValidationError("id must be a string")
	}
	if strings.TrimSpace(id) == "" {
		return "", shared.ErrMissingID
	}
	return id, nil
}

// SplitBatch splits a JSON array into its items.
func SplitBatch(data json.RawMessage) ([]json.RawMessage, error) {
	if !isArray(data) {
		return nil, shared.ErrInvalidBatch
	}
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, shared.ErrInvalidBatch
	}
	return items, nil
}

// IsAbsent reports whether a payload was omitted or null.
func IsAbsent(data json.RawMessage) bool {
	s := strings.TrimSpace(string(data))
	return s == "" || s == "null"
}
