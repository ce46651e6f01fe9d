// Package discovery finds git repository metadata directories on disk.
package discovery
