// Package history persists a ledger of coursepull runs in SQLite.
//
// Each run gets a uuid and records one row per download task decision and one
// row per reconciled stem. The ledger is informational: the filesystem stays
// the source of truth for what still needs downloading or merging, so a lost
// or cleared database never changes what a run does.
package history
