// Package services defines shared helpers consumed by the pipeline stages and
// the external tool clients.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, course titles, and stage names for
//     logging.
//   - Structured error markers plus the Wrap helper so failures can be
//     classified (configuration vs external tool vs transient) when they are
//     recorded in the history ledger.
package services
