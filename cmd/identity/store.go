package identity

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"
)

const minNameLength = 2

// User is a site account.
type User struct {
	ID        string
	Name      string
	Email     string
	EmailNorm string
	CreatedAt time.Time
}

// CreateUserInput describes a signup. Password is plain text and is hashed by
// the store's Hasher.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Now      time.Time
}

// Store is the account persistence boundary.
type Store interface {
	// CreateUser fails with ConflictError{Field: "email"} for a taken email.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// Authenticate returns the user for a matching email/password pair. Unknown
	// email and wrong password both yield ErrInvalidCredentials after similar work.
	Authenticate(ctx context.Context, email, password string) (User, error)

	GetUser(ctx context.Context, id string) (User, error)
}

// prepared is a validated, normalized CreateUserInput.
type prepared struct {
	name      string
	email     string
	emailNorm string
	password  string
	now       time.Time
}

func prepare(op string, h *Hasher, in CreateUserInput) (prepared, error) {
	p := prepared{
		name:     NormalizeName(in.Name),
		email:    in.Email,
		password: in.Password,
		now:      in.Now,
	}
	p.email = strings.TrimSpace(p.email)
	p.emailNorm = NormalizeEmail(p.email)

	switch {
	case p.name == "":
		return prepared{}, invalid(op, "name is required")
	case utf8.RuneCountInString(p.name) < minNameLength:
		return prepared{}, invalid(op, "name must be at least 2 characters")
	case p.emailNorm == "":
		return prepared{}, invalid(op, "email is required")
	case !ValidEmail(p.emailNorm):
		return prepared{}, invalid(op, "email is invalid")
	}
	if err := h.Validate(p.password); err != nil {
		return prepared{}, invalid(op, err.Error())
	}
	if p.now.IsZero() {
		p.now = time.Now().UTC()
	}
	return p, nil
}
