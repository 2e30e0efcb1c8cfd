// Package helper runs batch expansion and build preparation one unit at a
// time in the background.  Results are handed back through a per unit channel
// that the orchestrator polls without blocking.
package helper
