package password

import (
	"errors"
	"fmt"
)

var (
	ErrPasswordTooShort = errors.New("password too short")
	ErrPasswordTooLong  = errors.New("password too long")
	ErrWeakPassword     = errors.New("weak password")
	ErrInvalidHash      = errors.New("invalid password hash")
	ErrConfig           = errors.New("invalid password config")
)

// PolicyError is returned by Validate. Its message is fit to show a user;
// errors.Is matches the rule's sentinel.
type PolicyError struct {
	Rule  error
	Limit int
}

func (e *PolicyError) Error() string {
	switch e.Rule {
	case ErrPasswordTooShort:
		return fmt.Sprintf("password must be at least %d characters", e.Limit)
	case ErrPasswordTooLong:
		return fmt.Sprintf("password must be at most %d characters", e.Limit)
	case ErrWeakPassword:
		return "password is too easy to guess"
	default:
		return "password rejected"
	}
}

func (e *PolicyError) Unwrap() error { return e.Rule }
