package content

import "errors"

// Standard binary store errors.
//
// Implementations wrap these with context:
//
//	return nil, fmt.Errorf("content %s: %w", path, content.ErrContentNotFound)
//
// The vault checks them with errors.Is and maps them to its own error codes.
var (
	// ErrContentNotFound indicates nothing is stored at the requested path.
	ErrContentNotFound = errors.New("content not found")

	// ErrInvalidPath indicates a malformed id or logical path.
	ErrInvalidPath = errors.New("invalid content path")

	// ErrUnavailable indicates the backend could not be reached or timed out.
	//
	// This is a transient error: the same call may succeed later.
	ErrUnavailable = errors.New("content store unavailable")
)
