// Package cli provides the interactive storefront command-line client.
//
// It wires configuration, the local session database, the auth service and
// an interactive REPL. On start it tries to resume the saved session, then
// starts a background connectivity watcher and executes user commands.
//
// Commands:
//   - signup / login / logout
//   - resume: continue the saved session without a password
//   - refresh: rotate the current token pair
//   - me: show the current account
//   - ping: check the server
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
