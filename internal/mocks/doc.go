// Package mocks provides function-field test doubles for the service
// interfaces consumed by the HTTP layer. Each method calls its Fn field
// when set and otherwise returns the default values.
package mocks
