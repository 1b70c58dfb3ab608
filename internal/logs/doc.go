// Package logs reads the per-run JSON log files a run writes: it locates the
// newest one, returns its last lines with bounded memory, follows appended
// lines until the context ends, and renders records for the terminal.
package logs
