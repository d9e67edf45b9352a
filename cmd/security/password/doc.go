// Package password hashes and verifies account passwords.
//
// Hashes are Argon2id in PHC string form:
//
//	$argon2id$v=19$m=<KiB>,t=<iterations>,p=<lanes>$<salt>$<key>
//
// Stored hashes are decoded strictly, and Verify refuses parameters far above
// the configured cost so a tampered row cannot pin the CPU.
package password
