// Package notify publishes pipeline completion notices to a message bus.
package notify
