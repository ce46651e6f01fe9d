// Package cli constructs the gitscan command-line interface. It wires the
// Cobra command hierarchy to the layered configuration loader and the zap
// logger, and registers the search, status, log and watch commands.
package cli
