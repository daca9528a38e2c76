// Package artifact downloads release artifacts into a private temporary
// directory, computing their sha256 digest while streaming, and optionally
// extracts a single executable from a .tar.gz release archive.
package artifact
