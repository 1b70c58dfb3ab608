// Package textutil normalizes free-text titles scraped from course pages into
// strings that are safe to use as path segments.
//
// Course, section, unit, and lesson titles arrive in arbitrary Unicode and may
// contain characters that are illegal on one filesystem or another. Everything
// that ends up on disk passes through SanitizeSegment so that a title always
// maps to the same bytes, run after run.
package textutil
