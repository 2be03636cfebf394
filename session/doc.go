// Package session tracks one server-side record per active refresh token.
//
// # Key layout
//
//   - <prefix>:rec:<jti> holds the JSON-encoded [Record]; the key TTL
//     mirrors the refresh token lifetime.
//   - <prefix>:usr:<userID> is a SET of the user's active refresh jtis.
//
// The record key is addressed by jti directly, which doubles as the reverse
// index: logout only needs the jti from the presented token.
//
// # Session cap
//
// A user holds at most N concurrent records. When creation would exceed N,
// the oldest record by CreatedAt is invalidated and its jti blacklisted
// through the injected [Revoker] before the new record is written. The
// read-evict-write sequence is best-effort single-pass; concurrent creations
// from different processes can transiently overshoot the cap by one, which
// self-heals on the next login.
package session
