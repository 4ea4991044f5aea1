// Package rules evaluates deliverable rules against uploaded zip archives.
//
// Evaluation never fails as a whole: a rule whose payload cannot be decoded,
// or whose check cannot run because the archive is unreadable, produces an
// invalid result carrying the reason.
package rules
