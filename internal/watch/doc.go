// Package watch reports repositories whose metadata or working tree changed on disk.
package watch
