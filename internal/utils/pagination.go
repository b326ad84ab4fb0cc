// Package utils provides small, generic helpers for parsing lesson-list
// query parameters. They are independent of transport and domain logic.
package utils

import "strconv"

// AtoiDefault converts a query-string value to an int using strconv.Atoi.
// If the string is empty or cannot be parsed as an integer, it returns the
// provided default value instead.
//
// Example:
//
//	page := utils.AtoiDefault(c.Query("page"), 1)
//	size := utils.AtoiDefault(c.Query("page_size"), 20)
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}

// Clamp bounds v to the inclusive range [lo, hi]. Used to keep client-chosen
// page sizes inside server limits.
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
