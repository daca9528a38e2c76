// Package updater is the entry point of the "run" and "status" commands.
//
// Run loads the configuration of one managed binary, wires the release
// source, downloader, installer, service manager and notifiers into an
// orchestrator, runs a single update cycle and records its outcome in the
// history file and, when configured, a Prometheus textfile.
package updater
