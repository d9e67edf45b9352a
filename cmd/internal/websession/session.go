package websession

import (
	"encoding/json"
	"errors"
)

// Storage keys shared with every tab of the same profile.
const (
	TokenKey = "authToken"
	UserKey  = "userData"
)

// User is the profile returned by the account service on login/signup.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session is a bearer token together with its user profile.
type Session struct {
	Token string
	User  User
}

var errCorruptUser = errors.New("websession: corrupt user profile")

// IsSessionKey reports whether key is one of the session keys.
func IsSessionKey(key string) bool {
	return key == TokenKey || key == UserKey
}

func encodeUser(u User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// decodeUser accepts a JSON object carrying string name and email fields.
// Extra fields are ignored; null, arrays, scalars and missing fields are corrupt.
func decodeUser(raw string) (User, error) {
	var probe struct {
		Name  *string `json:"name"`
		Email *string `json:"email"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return User{}, errCorruptUser
	}
	if probe.Name == nil || probe.Email == nil {
		return User{}, errCorruptUser
	}
	return User{Name: *probe.Name, Email: *probe.Email}, nil
}
