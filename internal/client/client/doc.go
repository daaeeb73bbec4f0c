// Package client talks to the application's session endpoints and opens the
// local databases that back the credential store.
//
// # Overview
//
// The package provides:
//  1. A transport contract (see SessionAPI) for the session lifecycle:
//     Login, Refresh and Logout.
//  2. A concrete JSON-over-HTTP implementation (see HTTPClient). Its
//     http.Client is never wrapped by the bearer interceptor, so a refresh
//     can never recurse into another refresh.
//  3. Persistence bootstrap (InitDatabase, OpenPostgres, RunMigrations)
//     applying the embedded goose migrations.
//
// # Error Handling
//
// Endpoint failures are reported as *APIError. Common conditions are also
// matchable with errors.Is: ErrUnauthorized (401/403) and ErrUnavailable
// (connection failures and 5xx).
package client
