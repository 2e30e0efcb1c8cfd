// Package orchestrator owns every build list and is the only code allowed to
// move a build between them.  Each tick collects finished test runs, feeds the
// helper, reads the batch directory, admits and dispatches builds, and writes
// the status snapshot.
package orchestrator
