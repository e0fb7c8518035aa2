package droplog

import "time"

// Kind of write that was dropped
type Kind string

const (
	KindFinding  Kind = "finding"
	KindEvidence Kind = "evidence"
	KindService  Kind = "service"
)

// DropRecord represents a persisted record of a write the relay gave up on.
// Delivery stays best-effort; this is an audit trail, not a retry queue.
type DropRecord struct {
	ID          int64     `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Kind        Kind      `json:"kind"`
	RefKey      string    `json:"ref_key"` // fingerprint / service_key / finding id
	Message     string    `json:"message"`
	PayloadJSON string    `json:"payload_json,omitempty"` // raw JSON string
	CreatedAt   time.Time `json:"created_at"`
}
