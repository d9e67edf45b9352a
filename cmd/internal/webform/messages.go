package webform

// Field names used with View.ShowFieldError.
const (
	FieldName            = "name"
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirmPassword"
)

const (
	MsgEmailRequired    = "Email is required"
	MsgEmailInvalid     = "Please enter a valid email"
	MsgPasswordRequired = "Password is required"
	MsgNameRequired     = "Name is required"
	MsgNameTooShort     = "Name must be at least 2 characters"
	MsgPasswordTooShort = "Password must be at least 6 characters"
	MsgConfirmRequired  = "Please confirm your password"
	MsgPasswordMismatch = "Passwords do not match"
	MsgTermsRequired    = "Please accept the Terms of Service and Privacy Policy"
	MsgLoginSuccess     = "Login successful! Redirecting..."
	MsgSignupSuccess    = "Account created successfully! Redirecting..."
	MsgLoginFailed      = "Login failed. Please try again."
	MsgSignupFailed     = "Signup failed. Please try again."
	MsgTransportFailure = "An error occurred. Please try again later."
	MsgSubmitInProgress = "Please wait, your request is still being processed."
)
