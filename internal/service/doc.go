// Package service holds the use cases of the API: promotions, projects,
// groups, deliverables, reports, dashboards and similarity analyses. Each
// service validates through internal/domain, persists through the
// interfaces of internal/store and opens transactions when an operation
// spans several stores.
//
// Expected failures are returned as the sentinels of domain, store and
// this package. Anything else is wrapped in a ServiceError.
package service
