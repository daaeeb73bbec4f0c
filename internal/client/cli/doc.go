// Package cli provides the interactive session command-line client.
//
// It wires configuration, the credential store and the session service into
// a REPL. Typical flow: resume the stored session or prompt for credentials,
// then execute user commands. Every input line counts as user activity; the
// idle warning and any forced logout are printed as they happen, after which
// the user is back at the login prompt.
//
// Commands:
//   - login / logout
//   - status: who is signed in, session kind, token expiry, idle state
//   - token: check that a valid access token is available (refreshing it)
//   - get <path>: authenticated GET against the application API
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
