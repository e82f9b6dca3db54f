package validation

import (
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidUUID is returned when a path or body identifier is not a UUID.
var ErrInvalidUUID = fmt.Errorf("invalid UUID format")

// ValidateUUID checks that id parses as a UUID. All resource identifiers in
// the API are UUID strings, so this guards every {uuid} path segment and
// every id list in a request body.
func ValidateUUID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidUUID, id)
	}
	return nil
}
