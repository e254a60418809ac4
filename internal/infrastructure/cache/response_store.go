// Package cache keeps responses for Idempotency-Key replays.
package cache

import (
	"context"
	"time"
)

// StoredResponse is a response captured for replay. A pending entry marks a
// key whose first request is still running.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	Pending     bool   `json:"pending,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

// ResponseStore keeps replayable responses by key until their TTL passes.
type ResponseStore interface {
	// Get returns the stored response, or nil when key is unknown or expired.
	Get(ctx context.Context, key string) (*StoredResponse, error)

	// Put stores resp unless key is already held. It reports whether resp
	// was stored.
	Put(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) (bool, error)

	// Complete replaces whatever key holds with resp.
	Complete(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) error

	// Release drops key so the request can be retried.
	Release(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}
