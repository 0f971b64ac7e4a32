package metadata

import "errors"

var (
	// ErrRecordNotFound indicates no record exists for the requested id.
	ErrRecordNotFound = errors.New("record not found")

	// ErrInvalidRecord indicates a record that cannot be stored (empty id,
	// unencodable value).
	ErrInvalidRecord = errors.New("invalid record")

	// ErrUnavailable indicates the backend failed, timed out, or rejected a
	// write because of a concurrent conflicting write.
	//
	// This is a transient error: the same call may succeed later.
	ErrUnavailable = errors.New("metadata index unavailable")
)
