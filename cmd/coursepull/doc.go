// Package main hosts the coursepull CLI entrypoint and command graph.
//
// The Cobra-based command tree resolves configuration once, builds the
// catalog sources, downloader, muxer, and reconcile engine from it, and hands
// them to the pipeline. Maintenance commands (reconcile, consolidate,
// cleanup list) operate on an existing download tree without touching the
// network.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
