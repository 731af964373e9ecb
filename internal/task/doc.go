// Package task implements the task manager: it accepts units of work,
// dispatches each onto a background goroutine, maintains a registry of task
// records keyed by ID, answers status, list, and cancel queries, and
// propagates cooperative cancellation through tokens.
//
// A task's status moves Pending → Running → one of Completed, Failed, or
// Cancelled. Terminal states are absorbing; once recorded, a task record is
// immutable and retained for later querying.
package task
