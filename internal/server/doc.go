// Package server hosts the Fiber HTTP service and its middleware chain:
// panic recovery, request ids, access logging and JSON error rendering.
// Route groups live in the routes subpackage and receive their dependencies
// explicitly, so keep exports here narrow.
package server
