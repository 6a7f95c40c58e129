// Package storage defines the disk-backed store behind the font cache root.
// Writes go through temp file + rename so a crash never leaves a truncated
// font file at its final path, directory creation tolerates concurrent
// callers, and destructive operations are confined to the storage root.
// Higher layers (layout, localscan, manager) depend only on the Store
// interface so tests can swap in failing or recording implementations.
package storage
