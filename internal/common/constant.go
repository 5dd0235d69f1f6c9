// Package common contains shared constants and sentinel errors used across
// storefront components.
package common

// AuthorizationHeaderName is the gRPC metadata key (and, canonicalized, the
// HTTP header) that carries the access token on inbound requests.
const AuthorizationHeaderName = "authorization"

// BearerScheme is the optional scheme in front of a token ("Bearer <token>").
const BearerScheme = "Bearer"

// Roles known to the server. The user store is the source of truth for a
// user's current role.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)
