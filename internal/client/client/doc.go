// Package client contains the CLI's transport and local persistence bootstrap.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) for the
//     storefront auth service: Signup, Login, Refresh, Logout, Me and Ping.
//  2. A gRPC implementation (see GRPCClient) that keeps the current token pair,
//     attaches the access token to outgoing calls, transparently refreshes an
//     expired access token once, and maps gRPC status codes to sentinel errors.
//  3. InitDatabase, which opens the CLI's SQLite file and applies the embedded
//     goose migrations.
//
// # Error Handling
//
// Callers match failures with errors.Is against ErrUnavailable,
// ErrUnauthorized, ErrForbidden, ErrAlreadyExists, ErrInvalidArgument and
// ErrConflict.
package client
