// Package api handles incoming HTTP requests, request validation and
// response formatting. Handlers depend on small service interfaces declared
// here and translate service errors into HTTP status codes.
package api
