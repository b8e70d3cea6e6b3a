// Package api defines the JSON wire types exchanged between the tmolockd
// server and its clients.
package api

// LockRecord describes who holds a customer record and until when.
type LockRecord struct {
	// RecordID is the customer record identifier the lock applies to.
	RecordID string `json:"record_id"`
	// HolderName is the self-reported display name of the lock holder.
	HolderName string `json:"holder_name"`
	// HolderGroup is the holder's team or area label.
	HolderGroup string `json:"holder_group"`
	// AcquiredAt is the acquisition time as a Unix timestamp in seconds.
	AcquiredAt int64 `json:"acquired_at_unix"`
	// ExpiresAt is the expiry time as a Unix timestamp in seconds. The lock
	// is live while the server clock is strictly before this instant.
	ExpiresAt int64 `json:"expires_at_unix"`
}

// AcquireRequest is the body of POST /v1/locks.
type AcquireRequest struct {
	// RecordID identifies the customer record to lock.
	RecordID string `json:"record_id"`
	// HolderName is the display name to store as the lock holder.
	HolderName string `json:"holder_name"`
	// HolderGroup is the holder's team or area label.
	HolderGroup string `json:"holder_group"`
	// DurationMinutes is how long the lock should live. When omitted the
	// server default applies; an explicit zero or negative value is
	// rejected.
	DurationMinutes *int64 `json:"duration_minutes,omitempty"`
}

// AcquireResponse is returned with 201 Created after a successful acquire.
type AcquireResponse struct {
	LockRecord
	// CorrelationID echoes the caller supplied correlation value, if any.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ReleaseResponse is returned after a release. Released is true even when no
// lock existed, releasing a free record is not an error.
type ReleaseResponse struct {
	Released bool `json:"released"`
	// CorrelationID echoes the caller supplied correlation value, if any.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// ErrorCode is a stable machine readable code such as "record_free" or
	// "missing_holder_name".
	ErrorCode string `json:"error"`
	// Detail is a human readable explanation.
	Detail string `json:"detail,omitempty"`
}

// Error codes shared between server and client.
const (
	// ErrorCodeRecordFree is returned by a status check when no live lock
	// exists for the record.
	ErrorCodeRecordFree = "record_free"
	// ErrorCodeInternal is returned when the backing store fails.
	ErrorCodeInternal = "internal_error"
)
