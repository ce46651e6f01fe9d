// Package status reads point-in-time repository snapshots from local git metadata.
//
// Reader opens a repository with go-git, optionally fetches each remote through a
// Fetcher in declaration order, and reports ahead and behind counts against tracking
// branches. Any failure makes the whole read fail; callers never see a partial snapshot.
package status
