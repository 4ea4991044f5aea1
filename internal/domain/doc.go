// Package domain contains the core entities of the project management
// system: accounts, promotions, projects, groups, deliverables, rules,
// reports and similarity analyses. It is independent of storage and
// transport.
package domain
