// Package events decouples services from background processing. A service
// emits a TaskRequestEvent; handlers registered on the emitter (the task
// runner's event handler in production) turn it into persisted work.
package events
