// Package pool hosts the workers that run the tests of prepared builds.  A
// worker reserves port BasePort + build index and reports the outcome through
// the task the orchestrator polls.
package pool
