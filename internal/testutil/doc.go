// Package testutil contains helpers shared by tests across packages: a
// fluent event builder and scripted stub models. Not intended for
// production usage.
package testutil
