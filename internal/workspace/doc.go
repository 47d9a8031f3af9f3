// Package workspace manages the flat temp directory that holds uploaded media
// copies, extracted audio, subtitles and bundles. Derived paths are keyed by
// the source base name; Clear is the only cache invalidation.
package workspace
