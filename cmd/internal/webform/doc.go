// Package webform runs the login and signup form flows against a host view.
//
// A form validates locally, makes at most one account-service call per
// submission, stores the returned session and schedules the redirect home.
// Timers go through a Scheduler so tests can fire them by hand.
package webform
