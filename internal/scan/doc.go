// Package scan fans repository status reads out over a bounded worker pool.
//
// A Coordinator keeps results in request order and exposes a single cancellation entry point per
// scan; cancelled scans still return a result for every requested path.
package scan
