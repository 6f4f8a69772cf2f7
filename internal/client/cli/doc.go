// Package cli provides the interactive smartyedu command-line client.
//
// It stands in for the mobile UI: an interactive REPL on top of the
// offline-first core. Accounts are registered and signed in locally, sync runs
// in the background, and access changes are pushed to the terminal as they
// happen.
//
// Key features:
//   - register / login / logout against the local identity store
//   - status: access state, sync status and session mode
//   - sync on demand
//   - referral program: activate, redeem, status, claim, advance, deactivate
//   - ask: offline tutor replies
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
