// Package password implements password hashing and verification.
//
// New hashes are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verification also accepts bcrypt ($2a$, $2b$, $2y$) hashes carried over from
// the legacy user collection. [Hasher.NeedsUpgrade] reports true for those and
// for Argon2id hashes produced with weaker parameters, so the caller can rehash
// after a successful login.
//
// Password policy (length, character classes) is enforced by the engine.
package password
