// Package idgen generates job identifiers and batch file names. Callers
// treat the values as opaque strings; NewFunc can be replaced in tests.
package idgen
