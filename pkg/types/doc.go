// Package types defines the shared data model for lodge: package
// identities and sources, dependency declarations, flow and platform
// definitions, provenance records, and the narrow filesystem interface
// the rest of the codebase is written against.
package types
