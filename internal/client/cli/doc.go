// Package cli provides the interactive refkeeper client.
//
// It wires the library service, sync engine and upload queue into a REPL
// that keeps working offline. A background watcher probes the authority and
// switches the prompt between online and offline; a second loop runs sync
// passes on a fixed interval while online.
//
// Key features:
//   - Create, edit, delete, list and show items
//   - Attach PDFs, open them through the content cache
//   - Add notes and highlights to a PDF
//   - Sync on demand, inspect and resolve conflicts
//   - Inspect and retry the upload queue
//
// The REPL is started via App.Run(ctx), which blocks until the user exits.
package cli
