// Package iam resolves who is calling.
//
// Two modes are supported. Without a signing secret the caller's identity is
// taken from the X-User-ID header as-is, which suits a backend sitting behind
// a trusted gateway. With a secret configured every request must carry a
// bearer token minted by auth.JWTService, and the token subject becomes the
// identity; X-User-ID is ignored.
//
// The resolved identity is stored on the fiber context as a
// *kernel.AuthContext under the "auth" local and can be read with
// auth.FromFiber.
//
// Admin routes are wrapped with RequireAdmin, which checks for the "admin:*"
// or "*" scope when tokens are in use.
package iam
