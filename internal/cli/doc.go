// Package cli turns command-line arguments into a validated app.Config and
// carries process exit codes through ExitError.
package cli
