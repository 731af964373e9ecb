// Package workflow implements the orchestration engine: it keeps a registry
// of named workflow definitions, resolves each definition's dependency graph
// at run time, launches ready steps concurrently on a bounded worker pool,
// and aggregates per-step results into a shared context.
//
// A run moves Created → Running → one of Completed, Failed, or Aborted, with
// a cooperative Paused detour. Pausing and aborting never preempt steps that
// are already executing; a step's own timeout is the only preemptive
// deadline. The readiness loop suspends on a condition variable signalled by
// every step completion and run-state change, with a bounded poll fallback
// against missed wakeups.
package workflow
