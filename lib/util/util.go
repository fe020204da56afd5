// Package util contains helper functions used around the code.
package util

import "strings"

// EqualAddr compares two ledger addresses ignoring case. Addresses are hex
// strings, checksum casing carries no identity.
func EqualAddr(a, b string) bool {
	return strings.EqualFold(a, b)
}

// NormAddr returns an address in its canonical lowercase form.
func NormAddr(a string) string {
	return strings.ToLower(a)
}
