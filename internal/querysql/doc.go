// Package querysql replays materialized filters into parameterized SQL for
// SQLite.
//
// Where is the reference filter sink: it renders `age > ? AND (name LIKE ?
// OR id IN (?, ?))` and collects the parameters in placeholder order.
// Query and Select wrap a fragment into a single-table SELECT; `wherefn
// where --db` runs it against a SQLite database.
package querysql
