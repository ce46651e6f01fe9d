// Package inventory keeps the discovered repository list and the most recent scan snapshot in a
// SQLite database so later runs can rescan or display them without walking the filesystem again.
package inventory
