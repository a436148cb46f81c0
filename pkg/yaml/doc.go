// Package yaml wraps [github.com/goccy/go-yaml] with the decoder, encoder,
// schema validator, and path-annotated errors used for stitch configuration
// files and YAML data modules.
package yaml
