package auth

import (
	"errors"
	"fmt"
)

// Authentication failures share one external message so a caller cannot tell
// an unknown phone from a wrong secret or an insufficient role. The precise
// cause goes to the logs only.
var (
	ErrInvalidCredentials = errors.New("invalid phone number or password")

	ErrMalformedToken   = errors.New("malformed token")
	ErrTokenExpired     = errors.New("token expired")
	ErrWrongIssuer      = errors.New("token issuer mismatch")
	ErrWrongAudience    = errors.New("token audience mismatch")
	ErrWrongTokenType   = errors.New("wrong token type for this operation")
	ErrInsufficientRole = errors.New("insufficient role")
	ErrUserNotFound     = errors.New("user not found")

	ErrCorruptHash = errors.New("stored credential hash is corrupt")

	ErrDependency = errors.New("service temporarily unavailable")
)

// ValidationError reports malformed input with a field-level reason. It is
// safe to surface verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
