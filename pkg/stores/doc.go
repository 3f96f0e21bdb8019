// Package stores provides the persistence container for datastack.
// It configures a SQLite store (in-memory or file-backed), applies the
// model's schema migrations, recovers from migration-incompatible stores by
// wiping and reopening them once, and exposes generic Read and Save
// operations whose failures are always reported as a PersistenceError.
package stores
