// Package httpserver exposes the jobq runtime over HTTP.
//
// All endpoints live under /v1. Mutating endpoints require either the
// configured run token or a principal whose role is authorized for the
// operation. Routing uses chi; handlers live in the controllers subpackage.
package httpserver
