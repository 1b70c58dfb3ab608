// Package language normalizes the subtitle language a user configures to the
// ISO 639-1 code the downloader matches subtitle streams against.
package language
