// Package progress reports how many builds sit in each pipeline state. The
// orchestrator observes its lists after every tick and the tracker notifies a
// callback only when a counter changed.
package progress
