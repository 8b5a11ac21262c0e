// Package repository holds the MySQL-backed stores.  These sentinel values
// are shared with the in-memory stores so services can tell failure
// scenarios apart without knowing which backend is in use.
package repository

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a unique key, such as a
// second account for the same email.
var ErrDuplicate = errors.New("duplicate record")
