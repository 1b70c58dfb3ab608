// Package artifact classifies the files a lesson download leaves on disk and
// decides whether a lesson needs to be fetched again.
//
// Each discovered path is labelled exactly once by Classify (video, English
// audio, merged output, cleanup marker, or other) so callers never match
// suffixes ad hoc. Set derives the sibling paths for a stem, and Decide is the
// existence gate that keeps re-runs idempotent.
package artifact
