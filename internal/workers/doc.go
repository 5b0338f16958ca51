// Package workers holds launcherd's built-in background workers.
//
// Each worker is an independent component that declares itself to the
// launcher during host assembly (Register) and does all of its work in
// a launched goroutine until the shutdown context is cancelled. Workers
// share nothing through the launcher; the journal and logger they use
// are closed over at construction time.
package workers
