// Package password provides credential hashing and password-policy
// validation.
//
// Hashing uses argon2id with PHC-formatted digests. Verification recomputes
// the hash from the stored parameters and delegates equality to
// subtle.ConstantTimeCompare; secrets are never compared byte-wise by hand.
//
// The policy validator is intentionally separate from the hasher: the
// orchestrator enforces policy at registration and password-change time and
// returns every violated rule, so a client can correct its input in one
// round trip.
package password
