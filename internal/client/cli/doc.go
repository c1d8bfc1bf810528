// Package cli provides the interactive campusgate command-line client.
//
// It wires configuration, the local session database, the HTTP API client
// and a REPL. Typical flow: log in, inspect or validate the access token,
// rotate the pair with refresh, revoke the access token or log out.
//
// The REPL is started via App.Root(ctx), which blocks until the user exits.
package cli
