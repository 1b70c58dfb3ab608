// Package pipeline runs courses end to end: gate and download every lesson
// unit by unit, then tidy the tree (final-project placeholder, reconcile,
// consolidation) and record what happened in the history ledger.
//
// Downloads inside a unit run concurrently and are joined before the next
// unit starts. A failed lesson never cancels its siblings; it is logged,
// recorded, and picked up again by the next run through the existence gate.
package pipeline
