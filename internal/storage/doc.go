// Package storage is remindd's persistence layer.
//
// One SQL store backs every table the daemon needs:
//   - tasks, reminder settings and delivery targets (owned by the CRUD side)
//   - the occasion log, the durable half of the dedup store
//
// SQLite (modernc.org/sqlite, pure Go) is the default driver; PostgreSQL
// (lib/pq) is available for shared deployments. Queries are written with "?"
// placeholders and rebound per dialect.
package storage
