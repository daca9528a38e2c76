// Package publisher writes the release manifest consumed by the "manifest"
// release source: version, artifact URL, content digest and optional
// archive member of a build.
package publisher
