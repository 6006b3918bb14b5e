// Package id generates the client-side identifiers used for scene objects and
// relay sessions.
//
// Identifiers are UUIDv4 bytes encoded as lower-case base32 (RFC 4648) without
// padding, so they are 26 characters long and safe in URLs, file paths and
// bbolt keys.
package id
