// Package release contains the domain types of an update cycle.
//
// It defines what a release source offers (Descriptor), what is installed
// (Installation, Backup), what was downloaded (Artifact), and the terminal
// Outcome of a cycle together with its severity, exit code and the stage
// error sentinels used to classify failures.
package release
