// Package source discovers the latest release of a managed binary.
//
// Three variants are provided: the GitHub releases API, a YAML manifest
// published next to the artifacts, and a fixed URL without version
// information. All of them reject descriptors without an artifact URL or
// with a malformed digest.
package source
