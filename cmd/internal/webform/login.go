package webform

import (
	"context"

	"unileap/cmd/internal/accountclient"
)

// LoginForm drives the login page.
type LoginForm struct {
	*flow
}

// NewLoginForm binds a login form to its collaborators.
func NewLoginForm(d Deps) (*LoginForm, error) {
	f, err := newFlow(d)
	if err != nil {
		return nil, err
	}
	return &LoginForm{flow: f}, nil
}

// Submit validates in and, when valid, signs in.
func (f *LoginForm) Submit(ctx context.Context, in LoginInput) Outcome {
	if !f.begin() {
		return f.rejectBusy()
	}
	defer f.end()

	f.View.ClearFieldErrors()
	in.normalize()
	if errs := ValidateLogin(in); errs.Len() > 0 {
		f.showFieldErrors(errs)
		return OutcomeInvalid
	}

	return f.call(ctx, "login", MsgLoginSuccess, MsgLoginFailed, func() (accountclient.AuthResponse, error) {
		return f.Accounts.Login(ctx, in.Email, in.Password)
	})
}

// EmailBlur runs when the email field loses focus.
func (f *LoginForm) EmailBlur(email string) { f.emailBlur(email) }
