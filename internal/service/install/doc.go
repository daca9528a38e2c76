// Package install manages the live binary of a service.
//
// Installer validates downloaded artifacts, swaps them in with a
// write-temp-then-rename sequence that never leaves the path missing or
// partially written, keeps the previous binary as a backup until the new one
// is confirmed, and restores it on rollback. Probe reads the installed
// version by running the binary.
package install
