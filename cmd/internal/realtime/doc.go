// Package realtime relays storage-change notifications between the open tabs
// and processes of one browser profile.
//
// Every connection says hello with a profile id and its tab origin, then
// announces storage_changed envelopes. The gateway fans each announcement out
// to every other connection of the same profile. Only key names travel over
// the wire; values stay in the profile's own storage.
//
// Peer is the client side. It implements websession.Announcer and
// websession.ChangeFeed so a FileStore-backed manager can follow writes made
// by other processes.
package realtime
