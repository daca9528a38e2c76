// Package version exposes build metadata for helper-updater.
//
// Variables Version, Commit, and BuildTime are injected at build time via
// Go ldflags. UserAgent identifies the updater to release hosts and webhooks.
package version
