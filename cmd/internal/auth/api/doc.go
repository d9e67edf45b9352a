// Package authapi serves the account endpoints used by the login and signup
// pages: signup, login, logout and me.
//
// Responses share one JSON shape, {success, token, user, message, code}, so
// the browser flow can show message verbatim on failure. Login failures are
// uniform for unknown emails and wrong passwords, and both feed the audit log
// that backs the per-IP window and the per-email lockout.
package authapi
