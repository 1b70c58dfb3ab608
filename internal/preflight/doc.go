// Package preflight provides readiness checks for the filesystem paths and
// course site that coursepull depends on.
//
// The CLI "coursepull status" command renders every result; "coursepull run"
// refuses to start when a directory check fails, since every download would
// fail the same way.
package preflight
