// Package util renders stage instructions: text/template with a few string
// helpers, strict about missing keys, plus discovery of the state keys a
// template reads.
package util
