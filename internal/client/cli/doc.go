// Package cli provides the interactive NovaKeeper terminal client.
//
// It wires configuration, the local wallet store, the boundary clients and
// the reconciliation orchestrator, then runs a REPL. The App plays the UI
// collaborator: it prints phase progress, prompts for an account name and a
// funding amount, and shows warnings.
//
// Commands raise lifecycle events on the orchestrator:
//   - login / wallet <address>: a principal appears and the pipeline runs
//   - callback <url>: a provider redirect resets the episode
//   - retry: run again after a failure
//   - logout: end the episode and sign the wallet out
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
