package webform

import (
	"context"

	"unileap/cmd/internal/accountclient"
)

// SignupForm drives the signup page.
type SignupForm struct {
	*flow
}

// NewSignupForm binds a signup form to its collaborators. If the view also
// implements StrengthView, PasswordInput updates its strength meter.
func NewSignupForm(d Deps) (*SignupForm, error) {
	f, err := newFlow(d)
	if err != nil {
		return nil, err
	}
	return &SignupForm{flow: f}, nil
}

// Submit validates in and, when valid, creates the account. Field errors and
// the terms banner are shown together.
func (f *SignupForm) Submit(ctx context.Context, in SignupInput) Outcome {
	if !f.begin() {
		return f.rejectBusy()
	}
	defer f.end()

	f.View.ClearFieldErrors()
	in.normalize()
	errs, termsOK := ValidateSignup(in)
	f.showFieldErrors(errs)
	if !termsOK {
		f.showBanner(BannerError, MsgTermsRequired)
	}
	if errs.Len() > 0 || !termsOK {
		return OutcomeInvalid
	}

	return f.call(ctx, "signup", MsgSignupSuccess, MsgSignupFailed, func() (accountclient.AuthResponse, error) {
		return f.Accounts.Signup(ctx, in.Name, in.Email, in.Password)
	})
}

// EmailBlur runs when the email field loses focus.
func (f *SignupForm) EmailBlur(email string) { f.emailBlur(email) }

// PasswordInput runs on every keystroke in the password field.
func (f *SignupForm) PasswordInput(password string) Strength {
	s := PasswordStrength(password)
	if sv, ok := f.View.(StrengthView); ok {
		sv.SetStrength(s)
	}
	return s
}

// ConfirmBlur runs when the confirmation field loses focus.
func (f *SignupForm) ConfirmBlur(password, confirm string) {
	if confirm != "" && confirm != password {
		f.View.ShowFieldError(FieldConfirmPassword, MsgPasswordMismatch)
		return
	}
	f.View.HideFieldError(FieldConfirmPassword)
}
