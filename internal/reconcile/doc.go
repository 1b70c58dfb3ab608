// Package reconcile is the merge engine that runs after downloads finish.
//
// For every English audio track under the download root it either merges the
// track into its video (producing "<stem>.en.mp4"), recognizes an earlier
// merge, or reports an orphan. Once a merged file exists the originals are
// relocated into a sibling "_cleanup_<stem>" directory when cleanup is
// enabled. Every step is safe to repeat: a stem that already has a merged file
// is never handed to the muxer again.
package reconcile
