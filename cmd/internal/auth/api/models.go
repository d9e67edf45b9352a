package authapi

import "unileap/cmd/identity"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// authResponse is the single response shape of every endpoint.
type authResponse struct {
	Success bool          `json:"success"`
	Token   string        `json:"token,omitempty"`
	User    *userResponse `json:"user,omitempty"`
	Message string        `json:"message,omitempty"`
	Code    string        `json:"code,omitempty"`
}

func toUserResponse(u identity.User) *userResponse {
	return &userResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}
