// Package artifact persists generated binaries to disk and indexes them
// in SQLite. Files are named <intent>_<timestamp>_<id>.<ext> with a
// .meta.json sidecar carrying the generation context.
package artifact
