package webform

import (
	"regexp"
	"strings"
	"unicode/utf16"
)

const (
	minNameLength     = 2
	minPasswordLength = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// textLength counts s in UTF-16 code units, the unit browsers use for
// input length. Characters outside the BMP count as two.
func textLength(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// ValidEmail reports whether email has the shape local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// FieldErrors maps field names to messages, in the order they were found.
type FieldErrors struct {
	order []string
	msgs  map[string]string
}

func (e *FieldErrors) add(field, msg string) {
	if e.msgs == nil {
		e.msgs = make(map[string]string)
	}
	if _, ok := e.msgs[field]; ok {
		return
	}
	e.order = append(e.order, field)
	e.msgs[field] = msg
}

// Len returns the number of failing fields.
func (e FieldErrors) Len() int { return len(e.order) }

// Get returns the message for field.
func (e FieldErrors) Get(field string) (string, bool) {
	msg, ok := e.msgs[field]
	return msg, ok
}

// Fields returns the failing fields in validation order.
func (e FieldErrors) Fields() []string { return append([]string(nil), e.order...) }

// LoginInput is the login form's fields.
type LoginInput struct {
	Email    string
	Password string
}

// SignupInput is the signup form's fields.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	AcceptTerms     bool
}

func (in *LoginInput) normalize() {
	in.Email = strings.TrimSpace(in.Email)
}

func (in *SignupInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
}

// ValidateLogin checks the login fields.
func ValidateLogin(in LoginInput) FieldErrors {
	in.normalize()
	var errs FieldErrors
	validateEmail(&errs, in.Email)
	if in.Password == "" {
		errs.add(FieldPassword, MsgPasswordRequired)
	}
	return errs
}

// ValidateSignup checks the signup fields. Terms acceptance is reported
// separately because it is a page-level error.
func ValidateSignup(in SignupInput) (errs FieldErrors, termsOK bool) {
	in.normalize()
	switch {
	case in.Name == "":
		errs.add(FieldName, MsgNameRequired)
	case textLength(in.Name) < minNameLength:
		errs.add(FieldName, MsgNameTooShort)
	}
	validateEmail(&errs, in.Email)
	switch {
	case in.Password == "":
		errs.add(FieldPassword, MsgPasswordRequired)
	case textLength(in.Password) < minPasswordLength:
		errs.add(FieldPassword, MsgPasswordTooShort)
	}
	switch {
	case in.ConfirmPassword == "":
		errs.add(FieldConfirmPassword, MsgConfirmRequired)
	case in.ConfirmPassword != in.Password:
		errs.add(FieldConfirmPassword, MsgPasswordMismatch)
	}
	return errs, in.AcceptTerms
}

func validateEmail(errs *FieldErrors, email string) {
	switch {
	case email == "":
		errs.add(FieldEmail, MsgEmailRequired)
	case !ValidEmail(email):
		errs.add(FieldEmail, MsgEmailInvalid)
	}
}
