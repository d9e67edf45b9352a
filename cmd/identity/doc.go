// Package identity owns site accounts: a display name, a unique email and an
// Argon2id password credential.
//
// Two stores implement Store: PostgresStore for deployments and MemoryStore
// for development and tests. Both normalize email the same way so uniqueness
// and lookup agree.
package identity
