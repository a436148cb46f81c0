// Package config loads stitch project configuration.
//
// Configuration files are validated against the embedded JSON schema before
// they are decoded, so errors point at the offending YAML path with an
// excerpt of the source. The decoded module groups are then normalized into
// rules relative to the configuration file's directory.
package config
