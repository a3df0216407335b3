package models

import "time"

// IdempotencyRecord is the persisted row behind the get-or-set layer: one
// key, route and request hash map to exactly one stored response.
type IdempotencyRecord struct {
	Key          string
	Route        string
	RequestHash  string
	StatusCode   int
	ResponseJSON []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time
}
