// Package ui renders scan results and commit logs for the terminal.
//
// Reports can be written as a styled table for interactive use or as CSV, JSON and YAML for
// other tools. Unreadable repositories are always rendered as placeholder rows carrying the
// name and directories inferred from their path.
package ui
