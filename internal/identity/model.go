package identity

import (
	"fmt"
	"regexp"
	"time"
)

// Role is the closed set of account roles. Invalid values cannot pass
// ParseRole, so downstream code never checks for unknown roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// ParseRole maps a stored string onto a Role.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCustomer:
		return RoleCustomer, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Identity represents a registered account keyed by phone number.
//
// PendingCode and PendingCodeExpiresAt are set and cleared together: either a
// verification is outstanding and both are present, or neither is.
type Identity struct {
	ID                   string
	Phone                string
	Role                 Role
	SecretHash           []byte
	Verified             bool
	PendingCode          string
	PendingCodeExpiresAt time.Time
	LastLoginAt          time.Time
	CreatedAt            time.Time
}

// HasPendingCode reports whether a verification code is outstanding.
func (i Identity) HasPendingCode() bool {
	return i.PendingCode != ""
}

var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// ValidPhone reports whether phone is in normalized E.164 form.
func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}
