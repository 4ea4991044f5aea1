// Package task runs persisted background work. Tasks are saved before they
// are queued, executed by a fixed pool of workers, and rehydrated from the
// store through a Registry after a restart.
package task
