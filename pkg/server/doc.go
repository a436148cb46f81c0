// Package server is the interactive development server.
//
// It serves a directory of static files, transforms HTML responses with a
// [pipeline.Pipeline] on the way out, and pushes reload notifications to
// browsers over Server-Sent Events when data modules change.
package server
