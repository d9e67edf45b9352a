// Package websession owns the signed-in session as seen by one browser tab.
//
// The session lives in a key-value store shared by every tab of a profile:
// an opaque bearer token under TokenKey and a JSON user profile under UserKey.
// Both keys are written and removed together; a store holding only one of them,
// or a user profile that does not decode, is reset to empty on the next read.
//
// Manager is the only reader/writer within a tab. It projects the session onto
// two navigation surfaces (primary and compact) through host-provided element
// handles, and re-renders when another tab changes the store (ChangeFeed).
//
// Rendering and transport are adapters: see the console package for a terminal
// surface and the realtime package for a cross-process change feed.
package websession
