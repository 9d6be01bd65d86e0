// Package writer defines the research, draft and edit stages and assembles
// them into the sequential pipeline agent.
package writer
