// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from the
// services, which only see domain types and the sentinel errors below.
package store
