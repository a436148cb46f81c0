// Package mcp exposes stitch to Model Context Protocol clients.
//
// The server offers tools to list the configured module groups, to render a
// document through the pipeline, and to drop cached data so that edited
// data sources are read again.
package mcp
