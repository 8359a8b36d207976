// Package orchestrator routes submitted commands to capabilities and
// live session operations. Validation is synchronous; execution runs on
// its own goroutine and reports through the event bus, so a slow
// generation never blocks command submission.
package orchestrator
