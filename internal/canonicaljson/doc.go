// Package canonicaljson encodes JSON values in the Matrix canonical form.
//
// Canonical JSON is the exact byte string that signatures and MACs are
// computed over. Object keys are sorted by code point, no insignificant
// whitespace is emitted, numbers must be integers in the range
// [-(2^53)+1, (2^53)-1], and strings escape only the quote, the backslash
// and control characters. Everything else is written as raw UTF-8.
package canonicaljson
