// Package data loads data modules: structured files whose decoded values are
// exposed to render functions.
//
// A [Loader] merges a rule's data modules into a single map keyed by each
// file's base name without extension ([Key]). Decoded values are kept in a
// [Cache] keyed by absolute path until invalidated. Concurrent loads of the
// same path share one read.
//
// Supported formats are JSON, YAML, TOML and CUE, chosen by file extension.
// Cached values are shared between renders and must be treated as read-only.
package data
