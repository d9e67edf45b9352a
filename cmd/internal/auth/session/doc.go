// Package session issues and checks the bearer tokens handed to the site's
// login and signup forms.
//
// A token is a PASETO v4.public string carrying the user id ("uid") and a
// server session id ("sid"). Sessions are rows the server can revoke, so a
// validly signed token stops working after logout.
package session
