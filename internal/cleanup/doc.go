// Package cleanup tidies a download tree after the reconciler has run.
//
// Consolidate gathers every per-lesson "_cleanup_<stem>" directory into a
// single "<root>/_cleanup" directory so originals can be reviewed or deleted
// in one place. RemoveEmptyFinalProject drops the placeholder directory left
// behind when a course has no final-project videos. ListDirectories reports
// the consolidated directories with their sizes.
//
// Nothing in this package overwrites or deletes user files: consolidation
// picks a fresh destination name on collision, and only an empty final-project
// directory is ever removed.
package cleanup
