// Package postgres provides PostgreSQL implementations of the store
// interfaces, the persisted task store and the embedded goose migrations.
// Every store accepts a store.DBTX so it can run on a connection or inside a
// transaction handed out by WithTx.
package postgres
