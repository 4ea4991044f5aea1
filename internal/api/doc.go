// Package api exposes the services over HTTP. Handlers decode and validate
// requests, take the caller from the authenticated principal and map
// service errors to status codes with messages that are safe to return.
// Routes wires them on a chi router with the role guards of each route.
package api
