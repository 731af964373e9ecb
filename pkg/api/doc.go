// Package api defines the public value types of the orchestrator: task
// records, workflow definitions, run state, results, and the request and
// response messages of the HTTP surface
package api
