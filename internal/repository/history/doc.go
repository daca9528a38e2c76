// Package history persists the outcome of the last update cycle.
//
// The FileRepository stores one Record per managed service as protobuf JSON
// (a google.protobuf.Struct) so "helper-updater status" and external tools
// can read it.
package history
