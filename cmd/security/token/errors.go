package token

import "errors"

var (
	ErrKeyMissing  = errors.New("fingerprint key missing")
	ErrKeyTooShort = errors.New("fingerprint key too short")
)
